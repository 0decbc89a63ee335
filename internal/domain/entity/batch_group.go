package entity

import (
	"time"

	"github.com/google/uuid"
)

// BatchGroup is the logical multi-job operation created from splitting one
// caller request. Job order always matches chunk order; that ordering is
// what makes failed-job replacement deterministic.
type BatchGroup struct {
	id         uuid.UUID
	processor  string
	totalItems int
	jobIDs     []uuid.UUID
	isSplit    bool
	createdAt  time.Time
	updatedAt  time.Time
}

// NewBatchGroup creates a new BatchGroup entity. Member jobs are attached
// afterwards in chunk order via AddJob, because each job needs the group's
// ID at construction.
func NewBatchGroup(processor string, totalItems int, isSplit bool) *BatchGroup {
	now := time.Now()
	return &BatchGroup{
		id:         uuid.New(),
		processor:  processor,
		totalItems: totalItems,
		isSplit:    isSplit,
		createdAt:  now,
		updatedAt:  now,
	}
}

// AddJob appends a member job ID. Call order must match chunk order.
func (g *BatchGroup) AddJob(jobID uuid.UUID) {
	g.jobIDs = append(g.jobIDs, jobID)
	g.updatedAt = time.Now()
}

// RestoreBatchGroup creates a BatchGroup entity from stored data.
func RestoreBatchGroup(
	id uuid.UUID,
	processor string,
	totalItems int,
	jobIDs []uuid.UUID,
	isSplit bool,
	createdAt time.Time,
	updatedAt time.Time,
) *BatchGroup {
	return &BatchGroup{
		id:         id,
		processor:  processor,
		totalItems: totalItems,
		jobIDs:     jobIDs,
		isSplit:    isSplit,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

// ID returns the group ID.
func (g *BatchGroup) ID() uuid.UUID {
	return g.id
}

// Processor returns the processor kind all member jobs run.
func (g *BatchGroup) Processor() string {
	return g.processor
}

// TotalItems returns the total work item count across all member jobs.
func (g *BatchGroup) TotalItems() int {
	return g.totalItems
}

// JobIDs returns the member job IDs in chunk order.
func (g *BatchGroup) JobIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(g.jobIDs))
	copy(ids, g.jobIDs)
	return ids
}

// JobCount returns the number of member jobs.
func (g *BatchGroup) JobCount() int {
	return len(g.jobIDs)
}

// IsSplit returns false when the whole request fit in a single chunk.
func (g *BatchGroup) IsSplit() bool {
	return g.isSplit
}

// CreatedAt returns the creation timestamp.
func (g *BatchGroup) CreatedAt() time.Time {
	return g.createdAt
}

// UpdatedAt returns the last update timestamp.
func (g *BatchGroup) UpdatedAt() time.Time {
	return g.updatedAt
}

// JobIndex returns the chunk-order position of the given job ID, -1 if the
// job is not a member.
func (g *BatchGroup) JobIndex(jobID uuid.UUID) int {
	for i, id := range g.jobIDs {
		if id == jobID {
			return i
		}
	}
	return -1
}

// ReplaceJob swaps the job at the given chunk-order position for a new job
// identity. Used when a failed job is rebuilt for retry.
func (g *BatchGroup) ReplaceJob(index int, newJobID uuid.UUID) error {
	if index < 0 || index >= len(g.jobIDs) {
		return NewDomainError("job index out of range", "INVALID_JOB_INDEX")
	}
	g.jobIDs[index] = newJobID
	g.updatedAt = time.Now()
	return nil
}

// Equal compares two BatchGroup entities by identity.
func (g *BatchGroup) Equal(other *BatchGroup) bool {
	if other == nil {
		return false
	}
	return g.id == other.id
}
