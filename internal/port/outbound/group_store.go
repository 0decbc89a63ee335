package outbound

import (
	"context"

	"batchflow/internal/domain/entity"

	"github.com/google/uuid"
)

// GroupStore is the durable record of job and group state. Every state
// transition is persisted through it before the in-memory entity is
// considered committed, so a restarted process can enumerate non-terminal
// groups and resume polling. Writes must be atomic per record.
type GroupStore interface {
	// SaveGroup persists a group record (insert or update).
	SaveGroup(ctx context.Context, group *entity.BatchGroup) error

	// SaveJob persists a job record (insert or update).
	SaveJob(ctx context.Context, job *entity.BatchJob) error

	// GetGroup retrieves a group by ID. Returns ErrNotFound-wrapped errors
	// for unknown IDs.
	GetGroup(ctx context.Context, id uuid.UUID) (*entity.BatchGroup, error)

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, id uuid.UUID) (*entity.BatchJob, error)

	// GetJobsByGroup retrieves all jobs belonging to a group, including jobs
	// replaced by retries; callers order them via the group's job ID list.
	GetJobsByGroup(ctx context.Context, groupID uuid.UUID) ([]*entity.BatchJob, error)

	// ListActiveGroups retrieves every group that still has at least one
	// non-terminal member job.
	ListActiveGroups(ctx context.Context) ([]*entity.BatchGroup, error)
}
