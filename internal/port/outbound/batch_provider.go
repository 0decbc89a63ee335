package outbound

import (
	"context"
)

// ProviderRequest is one item-level record inside a provider submission. The
// correlation key is round-tripped by the provider and maps the result back
// to its work item; the payload is opaque to the orchestrator.
type ProviderRequest struct {
	CorrelationKey string `json:"correlation_key"`
	Payload        string `json:"payload"`
}

// ProviderStatus is the provider's view of a remote job, in the provider's
// own status vocabulary. The domain owns the mapping onto the local state
// machine.
type ProviderStatus struct {
	Status         string `json:"status"`
	CompletedCount int    `json:"completed_count"`
	FailedCount    int    `json:"failed_count"`
}

// ProviderResult is one item-level result downloaded from a completed remote
// job. The provider may report individual item failures inside an overall
// completed job.
type ProviderResult struct {
	CorrelationKey string `json:"correlation_key"`
	Payload        string `json:"payload,omitempty"`
	Error          string `json:"error,omitempty"`
	Failed         bool   `json:"failed"`
}

// BatchProvider is the narrow contract this subsystem depends on to talk to
// the remote asynchronous batch API. Implementations own authentication,
// the wire envelope, and timeout/backoff policy; every method is a potential
// blocking point bounded only by remote latency.
type BatchProvider interface {
	// Submit sends one bounded submission and returns the provider-assigned
	// remote job ID.
	Submit(ctx context.Context, requests []ProviderRequest) (string, error)

	// Poll reads the current remote status and progress counts.
	Poll(ctx context.Context, remoteID string) (ProviderStatus, error)

	// Download retrieves the item-level result set of a completed remote job.
	Download(ctx context.Context, remoteID string) ([]ProviderResult, error)

	// Cancel requests cancellation. Best-effort: the returned status reports
	// what the provider actually did, and an already-terminal remote state
	// wins over the cancel request.
	Cancel(ctx context.Context, remoteID string) (ProviderStatus, error)
}
