// Package mock provides in-memory fakes for the outbound ports, used by
// tests and by the CLI's mock provider mode.
package mock

import (
	"context"
	"fmt"
	"sync"

	"batchflow/internal/port/outbound"
)

// BatchProvider is a configurable fake of the remote batch API. Default
// behavior: submissions are accepted and assigned sequential remote IDs,
// polls report in_progress, downloads echo one successful result per
// submitted request, cancels report cancelled. Each method can be overridden
// per test, and all calls are counted.
type BatchProvider struct {
	mu sync.Mutex

	SubmitFunc   func(ctx context.Context, requests []outbound.ProviderRequest) (string, error)
	PollFunc     func(ctx context.Context, remoteID string) (outbound.ProviderStatus, error)
	DownloadFunc func(ctx context.Context, remoteID string) ([]outbound.ProviderResult, error)
	CancelFunc   func(ctx context.Context, remoteID string) (outbound.ProviderStatus, error)

	seq           int
	submissions   map[string][]outbound.ProviderRequest
	submitCalls   int
	pollCalls     int
	downloadCalls int
	cancelCalls   int
}

// NewBatchProvider creates a mock provider with default behavior.
func NewBatchProvider() *BatchProvider {
	return &BatchProvider{
		submissions: make(map[string][]outbound.ProviderRequest),
	}
}

// Submit implements outbound.BatchProvider.
func (p *BatchProvider) Submit(ctx context.Context, requests []outbound.ProviderRequest) (string, error) {
	p.mu.Lock()
	p.submitCalls++
	submitFn := p.SubmitFunc
	p.mu.Unlock()

	if submitFn != nil {
		return submitFn(ctx, requests)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	remoteID := fmt.Sprintf("remote-%d", p.seq)
	recorded := make([]outbound.ProviderRequest, len(requests))
	copy(recorded, requests)
	p.submissions[remoteID] = recorded
	return remoteID, nil
}

// Poll implements outbound.BatchProvider.
func (p *BatchProvider) Poll(ctx context.Context, remoteID string) (outbound.ProviderStatus, error) {
	p.mu.Lock()
	p.pollCalls++
	pollFn := p.PollFunc
	p.mu.Unlock()

	if pollFn != nil {
		return pollFn(ctx, remoteID)
	}
	return outbound.ProviderStatus{Status: "in_progress"}, nil
}

// Download implements outbound.BatchProvider.
func (p *BatchProvider) Download(ctx context.Context, remoteID string) ([]outbound.ProviderResult, error) {
	p.mu.Lock()
	p.downloadCalls++
	downloadFn := p.DownloadFunc
	p.mu.Unlock()

	if downloadFn != nil {
		return downloadFn(ctx, remoteID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	requests := p.submissions[remoteID]
	results := make([]outbound.ProviderResult, 0, len(requests))
	for _, req := range requests {
		results = append(results, outbound.ProviderResult{
			CorrelationKey: req.CorrelationKey,
			Payload:        fmt.Sprintf(`{"echo":%q}`, req.CorrelationKey),
		})
	}
	return results, nil
}

// Cancel implements outbound.BatchProvider.
func (p *BatchProvider) Cancel(ctx context.Context, remoteID string) (outbound.ProviderStatus, error) {
	p.mu.Lock()
	p.cancelCalls++
	cancelFn := p.CancelFunc
	p.mu.Unlock()

	if cancelFn != nil {
		return cancelFn(ctx, remoteID)
	}
	return outbound.ProviderStatus{Status: "cancelled"}, nil
}

// Submissions returns the requests recorded for a remote ID.
func (p *BatchProvider) Submissions(remoteID string) []outbound.ProviderRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submissions[remoteID]
}

// SubmitCalls returns the number of Submit invocations.
func (p *BatchProvider) SubmitCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submitCalls
}

// PollCalls returns the number of Poll invocations.
func (p *BatchProvider) PollCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pollCalls
}

// DownloadCalls returns the number of Download invocations.
func (p *BatchProvider) DownloadCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.downloadCalls
}

// CancelCalls returns the number of Cancel invocations.
func (p *BatchProvider) CancelCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelCalls
}
