package valueobject

import "fmt"

// JobStatus represents the current status of a batch job.
type JobStatus string

// Job status constants.
const (
	JobStatusCreated    JobStatus = "created"
	JobStatusSubmitted  JobStatus = "submitted"
	JobStatusValidating JobStatus = "validating"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusFinalizing JobStatus = "finalizing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// validJobStatuses contains all valid job statuses.
var validJobStatuses = map[JobStatus]bool{
	JobStatusCreated:    true,
	JobStatusSubmitted:  true,
	JobStatusValidating: true,
	JobStatusInProgress: true,
	JobStatusFinalizing: true,
	JobStatusCompleted:  true,
	JobStatusFailed:     true,
	JobStatusCancelled:  true,
}

// jobStatusTransitions defines the legal state machine. A job may skip
// intermediate states because the provider is free to report any later
// phase on the next poll.
var jobStatusTransitions = map[JobStatus][]JobStatus{
	JobStatusCreated: {
		JobStatusSubmitted,
		JobStatusFailed,
		JobStatusCancelled,
	},
	JobStatusSubmitted: {
		JobStatusValidating,
		JobStatusInProgress,
		JobStatusFinalizing,
		JobStatusCompleted,
		JobStatusFailed,
		JobStatusCancelled,
	},
	JobStatusValidating: {
		JobStatusInProgress,
		JobStatusFinalizing,
		JobStatusCompleted,
		JobStatusFailed,
		JobStatusCancelled,
	},
	JobStatusInProgress: {
		JobStatusFinalizing,
		JobStatusCompleted,
		JobStatusFailed,
		JobStatusCancelled,
	},
	JobStatusFinalizing: {
		JobStatusCompleted,
		JobStatusFailed,
		JobStatusCancelled,
	},
	// Terminal states cannot transition
	JobStatusCompleted: {},
	JobStatusFailed:    {},
	JobStatusCancelled: {},
}

// providerStatusMap translates provider status vocabulary onto the local
// state machine. Adding a new provider status string is a one-line change.
var providerStatusMap = map[string]JobStatus{
	"validating":  JobStatusValidating,
	"pending":     JobStatusValidating,
	"in_progress": JobStatusInProgress,
	"running":     JobStatusInProgress,
	"processing":  JobStatusInProgress,
	"cancelling":  JobStatusInProgress,
	"finalizing":  JobStatusFinalizing,
	"completed":   JobStatusCompleted,
	"succeeded":   JobStatusCompleted,
	"ended":       JobStatusCompleted,
	"failed":      JobStatusFailed,
	"errored":     JobStatusFailed,
	"expired":     JobStatusFailed,
	"cancelled":   JobStatusCancelled,
	"canceled":    JobStatusCancelled,
}

// NewJobStatus creates a new JobStatus with validation.
func NewJobStatus(status string) (JobStatus, error) {
	s := JobStatus(status)
	if !validJobStatuses[s] {
		return "", fmt.Errorf("invalid job status: %s", status)
	}
	return s, nil
}

// FromProviderStatus maps a provider-reported status string onto the local
// state machine. Unrecognized statuses map to in_progress so an unknown
// provider phase can never be mistaken for a terminal state.
func FromProviderStatus(status string) JobStatus {
	if mapped, ok := providerStatusMap[status]; ok {
		return mapped
	}
	return JobStatusInProgress
}

// String returns the string representation of the status.
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// CanTransitionTo returns true if the status can transition to the target status.
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	validTransitions, exists := jobStatusTransitions[s]
	if !exists {
		return false
	}
	for _, validTarget := range validTransitions {
		if target == validTarget {
			return true
		}
	}
	return false
}

// AllJobStatuses returns all valid job statuses.
func AllJobStatuses() []JobStatus {
	statuses := make([]JobStatus, 0, len(validJobStatuses))
	for status := range validJobStatuses {
		statuses = append(statuses, status)
	}
	return statuses
}
