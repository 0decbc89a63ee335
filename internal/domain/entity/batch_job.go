package entity

import (
	"time"

	"batchflow/internal/domain/valueobject"

	"github.com/google/uuid"
)

// BatchJob represents one chunk's submission-to-completion lifecycle against
// the remote batch provider.
type BatchJob struct {
	id             uuid.UUID
	groupID        uuid.UUID
	chunkIndex     int
	remoteID       *string
	status         valueobject.JobStatus
	itemCount      int
	completedCount int
	failedCount    int
	errorMessage   *string
	chunk          []WorkItem
	results        map[string]ItemResult
	collected      bool
	createdAt      time.Time
	submittedAt    *time.Time
	completedAt    *time.Time
	updatedAt      time.Time
}

// NewBatchJob creates a new BatchJob owning the given chunk.
func NewBatchJob(groupID uuid.UUID, chunkIndex int, chunk []WorkItem) *BatchJob {
	now := time.Now()
	items := make([]WorkItem, len(chunk))
	copy(items, chunk)
	return &BatchJob{
		id:         uuid.New(),
		groupID:    groupID,
		chunkIndex: chunkIndex,
		status:     valueobject.JobStatusCreated,
		itemCount:  len(items),
		chunk:      items,
		createdAt:  now,
		updatedAt:  now,
	}
}

// RestoreBatchJob creates a BatchJob entity from stored data.
func RestoreBatchJob(
	id uuid.UUID,
	groupID uuid.UUID,
	chunkIndex int,
	remoteID *string,
	status valueobject.JobStatus,
	completedCount int,
	failedCount int,
	errorMessage *string,
	chunk []WorkItem,
	results map[string]ItemResult,
	collected bool,
	createdAt time.Time,
	submittedAt *time.Time,
	completedAt *time.Time,
	updatedAt time.Time,
) *BatchJob {
	return &BatchJob{
		id:             id,
		groupID:        groupID,
		chunkIndex:     chunkIndex,
		remoteID:       remoteID,
		status:         status,
		itemCount:      len(chunk),
		completedCount: completedCount,
		failedCount:    failedCount,
		errorMessage:   errorMessage,
		chunk:          chunk,
		results:        results,
		collected:      collected,
		createdAt:      createdAt,
		submittedAt:    submittedAt,
		completedAt:    completedAt,
		updatedAt:      updatedAt,
	}
}

// ID returns the local job ID.
func (j *BatchJob) ID() uuid.UUID {
	return j.id
}

// GroupID returns the owning group's ID.
func (j *BatchJob) GroupID() uuid.UUID {
	return j.groupID
}

// ChunkIndex returns the job's position within the group's chunk order.
func (j *BatchJob) ChunkIndex() int {
	return j.chunkIndex
}

// RemoteID returns the provider-assigned job ID, nil before submission.
func (j *BatchJob) RemoteID() *string {
	return j.remoteID
}

// Status returns the current job status.
func (j *BatchJob) Status() valueobject.JobStatus {
	return j.status
}

// ItemCount returns the number of work items the job owns.
func (j *BatchJob) ItemCount() int {
	return j.itemCount
}

// CompletedCount returns the provider-reported completed item count.
func (j *BatchJob) CompletedCount() int {
	return j.completedCount
}

// FailedCount returns the provider-reported failed item count.
func (j *BatchJob) FailedCount() int {
	return j.failedCount
}

// ErrorMessage returns the recorded error, nil if none.
func (j *BatchJob) ErrorMessage() *string {
	return j.errorMessage
}

// Chunk returns a copy of the work items the job owns.
func (j *BatchJob) Chunk() []WorkItem {
	items := make([]WorkItem, len(j.chunk))
	copy(items, j.chunk)
	return items
}

// Results returns the collected per-item results, nil until collected.
func (j *BatchJob) Results() map[string]ItemResult {
	if j.results == nil {
		return nil
	}
	out := make(map[string]ItemResult, len(j.results))
	for k, v := range j.results {
		out[k] = v
	}
	return out
}

// Collected returns true once results have been downloaded and cached.
func (j *BatchJob) Collected() bool {
	return j.collected
}

// CreatedAt returns the creation timestamp.
func (j *BatchJob) CreatedAt() time.Time {
	return j.createdAt
}

// SubmittedAt returns the submission timestamp, nil before submission.
func (j *BatchJob) SubmittedAt() *time.Time {
	return j.submittedAt
}

// CompletedAt returns the terminal-state timestamp, nil before then.
func (j *BatchJob) CompletedAt() *time.Time {
	return j.completedAt
}

// UpdatedAt returns the last update timestamp.
func (j *BatchJob) UpdatedAt() time.Time {
	return j.updatedAt
}

// IsTerminal returns true if the job reached a terminal state.
func (j *BatchJob) IsTerminal() bool {
	return j.status.IsTerminal()
}

// MarkSubmitted records the provider-assigned remote ID and transitions the
// job to submitted.
func (j *BatchJob) MarkSubmitted(remoteID string) error {
	if !j.status.CanTransitionTo(valueobject.JobStatusSubmitted) {
		return NewDomainError("cannot submit job in current status", "INVALID_STATUS_TRANSITION")
	}
	if remoteID == "" {
		return NewDomainError("remote ID cannot be empty", "INVALID_REMOTE_ID")
	}

	now := time.Now()
	j.status = valueobject.JobStatusSubmitted
	j.remoteID = &remoteID
	j.submittedAt = &now
	j.errorMessage = nil
	j.updatedAt = now
	return nil
}

// ApplyProviderStatus folds a polled provider status and counts into the job.
// Terminal jobs are left untouched. A provider report that would move the
// state machine backwards keeps the last known good status; counts are still
// updated.
func (j *BatchJob) ApplyProviderStatus(status valueobject.JobStatus, completedCount, failedCount int) {
	if j.status.IsTerminal() {
		return
	}

	now := time.Now()
	j.completedCount = completedCount
	j.failedCount = failedCount
	if status != j.status && j.status.CanTransitionTo(status) {
		j.status = status
		if status.IsTerminal() {
			j.completedAt = &now
		}
	}
	j.updatedAt = now
}

// MarkFailed records a failure. Valid from any non-terminal state; this also
// covers submission failures recorded by the coordinator, where the job moves
// created -> failed without ever being submitted.
func (j *BatchJob) MarkFailed(errorMessage string) error {
	if !j.status.CanTransitionTo(valueobject.JobStatusFailed) {
		return NewDomainError("cannot fail job in current status", "INVALID_STATUS_TRANSITION")
	}

	now := time.Now()
	j.status = valueobject.JobStatusFailed
	j.errorMessage = &errorMessage
	j.completedAt = &now
	j.updatedAt = now
	return nil
}

// MarkCancelled moves the job to cancelled from any non-terminal state.
func (j *BatchJob) MarkCancelled() error {
	if !j.status.CanTransitionTo(valueobject.JobStatusCancelled) {
		return NewDomainError("cannot cancel job in current status", "INVALID_STATUS_TRANSITION")
	}

	now := time.Now()
	j.status = valueobject.JobStatusCancelled
	j.completedAt = &now
	j.updatedAt = now
	return nil
}

// MarkCollected caches downloaded per-item results on the job. Only valid
// once completed; collection is idempotent at the coordinator level because
// a collected job is never downloaded again.
func (j *BatchJob) MarkCollected(results map[string]ItemResult) error {
	if j.status != valueobject.JobStatusCompleted {
		return &NotReadyError{JobID: j.id, Status: j.status}
	}

	stored := make(map[string]ItemResult, len(results))
	for k, v := range results {
		stored[k] = v
	}
	j.results = stored
	j.collected = true
	j.updatedAt = time.Now()
	return nil
}

// Equal compares two BatchJob entities by identity.
func (j *BatchJob) Equal(other *BatchJob) bool {
	if other == nil {
		return false
	}
	return j.id == other.id
}
