package entity

import (
	"fmt"

	"batchflow/internal/domain/valueobject"

	"github.com/google/uuid"
)

// SubmissionError reports a failed provider submission. The job remains in
// its prior state; retry policy belongs to the group coordinator.
type SubmissionError struct {
	JobID     uuid.UUID
	ChunkSize int
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed for job %s (%d items): %v", e.JobID, e.ChunkSize, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// PollError reports a transient failure reading remote status. The job's
// last known good state is preserved; the caller should retry the refresh.
type PollError struct {
	JobID    uuid.UUID
	RemoteID string
	Err      error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll failed for job %s (remote %s): %v", e.JobID, e.RemoteID, e.Err)
}

func (e *PollError) Unwrap() error {
	return e.Err
}

// NotReadyError indicates a result collection attempt on a job that has not
// reached the completed state.
type NotReadyError struct {
	JobID  uuid.UUID
	Status valueobject.JobStatus
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("job %s is not ready for collection (status %s)", e.JobID, e.Status)
}
