package entity

import (
	"errors"

	"batchflow/internal/domain/valueobject"
)

// WorkItem is one unit of work to process through the remote provider,
// identified by namespace/collection/item (e.g. org/repo/issue-number) plus
// the processor kind to run. The payload is opaque to the orchestrator and
// is forwarded to the provider verbatim.
type WorkItem struct {
	Namespace  string `json:"namespace"`
	Collection string `json:"collection"`
	ItemID     string `json:"item_id"`
	Processor  string `json:"processor"`
	Payload    string `json:"payload"`
}

// Validate checks the identity components are present.
func (w WorkItem) Validate() error {
	switch {
	case w.Namespace == "":
		return errors.New("work item namespace cannot be empty")
	case w.Collection == "":
		return errors.New("work item collection cannot be empty")
	case w.ItemID == "":
		return errors.New("work item ID cannot be empty")
	case w.Processor == "":
		return errors.New("work item processor cannot be empty")
	default:
		return nil
	}
}

// CorrelationKey derives the stable key that survives the provider round trip.
func (w WorkItem) CorrelationKey() (valueobject.CorrelationKey, error) {
	return valueobject.NewCorrelationKey(w.Namespace, w.Collection, w.ItemID, w.Processor)
}

// ItemResult is one entry in a job's collected result set: either a success
// payload or a per-item failure reported by the provider inside an otherwise
// completed job. Unresolvable marks entries whose correlation key could not
// be decoded.
type ItemResult struct {
	Key          string `json:"key"`
	Payload      string `json:"payload,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Failed       bool   `json:"failed"`
	Unresolvable bool   `json:"unresolvable,omitempty"`
}
