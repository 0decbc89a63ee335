package repository

import (
	"context"
	"encoding/json"
	"time"

	"batchflow/internal/domain/entity"
	"batchflow/internal/domain/valueobject"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQL fragments shared across queries.
const (
	batchGroupFields = `
		id, processor, total_items, job_ids, is_split, created_at, updated_at`
	batchGroupTable = "batchflow.batch_groups"

	batchJobFields = `
		id, group_id, chunk_index, remote_id, status, completed_count, failed_count,
		error_message, chunk, results, collected, created_at, submitted_at, completed_at, updated_at`
	batchJobTable = "batchflow.batch_jobs"
)

// PostgreSQLGroupStore implements the GroupStore interface on pgx.
type PostgreSQLGroupStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLGroupStore creates a new PostgreSQL-backed group store.
func NewPostgreSQLGroupStore(pool *pgxpool.Pool) *PostgreSQLGroupStore {
	return &PostgreSQLGroupStore{pool: pool}
}

// SaveGroup upserts a group record.
func (r *PostgreSQLGroupStore) SaveGroup(ctx context.Context, group *entity.BatchGroup) error {
	if group == nil {
		return ErrInvalidArgument
	}

	jobIDs, err := json.Marshal(group.JobIDs())
	if err != nil {
		return WrapError(err, "marshal group job IDs")
	}

	query := `
		INSERT INTO ` + batchGroupTable + ` (
			id, processor, total_items, job_ids, is_split, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		ON CONFLICT (id) DO UPDATE SET
			job_ids = EXCLUDED.job_ids,
			updated_at = EXCLUDED.updated_at`

	_, err = r.pool.Exec(ctx, query,
		group.ID(),
		group.Processor(),
		group.TotalItems(),
		jobIDs,
		group.IsSplit(),
		group.CreatedAt(),
		group.UpdatedAt(),
	)
	if err != nil {
		return WrapError(err, "save batch group")
	}
	return nil
}

// SaveJob upserts a job record.
func (r *PostgreSQLGroupStore) SaveJob(ctx context.Context, job *entity.BatchJob) error {
	if job == nil {
		return ErrInvalidArgument
	}

	chunk, err := json.Marshal(job.Chunk())
	if err != nil {
		return WrapError(err, "marshal job chunk")
	}
	var results []byte
	if job.Results() != nil {
		results, err = json.Marshal(job.Results())
		if err != nil {
			return WrapError(err, "marshal job results")
		}
	}

	query := `
		INSERT INTO ` + batchJobTable + ` (
			id, group_id, chunk_index, remote_id, status, completed_count, failed_count,
			error_message, chunk, results, collected, created_at, submitted_at, completed_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
		ON CONFLICT (id) DO UPDATE SET
			remote_id = EXCLUDED.remote_id,
			status = EXCLUDED.status,
			completed_count = EXCLUDED.completed_count,
			failed_count = EXCLUDED.failed_count,
			error_message = EXCLUDED.error_message,
			results = EXCLUDED.results,
			collected = EXCLUDED.collected,
			submitted_at = EXCLUDED.submitted_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at`

	_, err = r.pool.Exec(ctx, query,
		job.ID(),
		job.GroupID(),
		job.ChunkIndex(),
		job.RemoteID(),
		job.Status().String(),
		job.CompletedCount(),
		job.FailedCount(),
		job.ErrorMessage(),
		chunk,
		results,
		job.Collected(),
		job.CreatedAt(),
		job.SubmittedAt(),
		job.CompletedAt(),
		job.UpdatedAt(),
	)
	if err != nil {
		return WrapError(err, "save batch job")
	}
	return nil
}

// GetGroup retrieves a group by ID, nil if not found.
func (r *PostgreSQLGroupStore) GetGroup(ctx context.Context, id uuid.UUID) (*entity.BatchGroup, error) {
	query := `SELECT ` + batchGroupFields + ` FROM ` + batchGroupTable + ` WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)

	group, err := scanGroup(row)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, nil //nolint:nilnil // Not found is not an error condition for Get methods
		}
		return nil, WrapError(err, "get batch group by ID")
	}
	return group, nil
}

// GetJob retrieves a job by ID, nil if not found.
func (r *PostgreSQLGroupStore) GetJob(ctx context.Context, id uuid.UUID) (*entity.BatchJob, error) {
	query := `SELECT ` + batchJobFields + ` FROM ` + batchJobTable + ` WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)

	job, err := scanJob(row)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, nil //nolint:nilnil // Not found is not an error condition for Get methods
		}
		return nil, WrapError(err, "get batch job by ID")
	}
	return job, nil
}

// GetJobsByGroup retrieves all jobs for a group ordered by creation time,
// including jobs replaced by retries.
func (r *PostgreSQLGroupStore) GetJobsByGroup(ctx context.Context, groupID uuid.UUID) ([]*entity.BatchJob, error) {
	query := `SELECT ` + batchJobFields + ` FROM ` + batchJobTable + `
		WHERE group_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, WrapError(err, "get batch jobs by group")
	}
	defer rows.Close()

	jobs := make([]*entity.BatchJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, WrapError(err, "scan batch job row")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(err, "iterate batch job rows")
	}
	return jobs, nil
}

// ListActiveGroups retrieves groups that still have non-terminal jobs.
// Replaced jobs are always terminal, so membership filtering is unnecessary.
func (r *PostgreSQLGroupStore) ListActiveGroups(ctx context.Context) ([]*entity.BatchGroup, error) {
	query := `
		SELECT ` + batchGroupFields + `
		FROM ` + batchGroupTable + ` g
		WHERE EXISTS (
			SELECT 1 FROM ` + batchJobTable + ` j
			WHERE j.group_id = g.id
			  AND j.status NOT IN ('completed', 'failed', 'cancelled')
		)
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, WrapError(err, "list active groups")
	}
	defer rows.Close()

	groups := make([]*entity.BatchGroup, 0)
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, WrapError(err, "scan batch group row")
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(err, "iterate batch group rows")
	}
	return groups, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*entity.BatchGroup, error) {
	var (
		id         uuid.UUID
		processor  string
		totalItems int
		jobIDsRaw  []byte
		isSplit    bool
		createdAt  time.Time
		updatedAt  time.Time
	)

	if err := row.Scan(&id, &processor, &totalItems, &jobIDsRaw, &isSplit, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var jobIDs []uuid.UUID
	if err := json.Unmarshal(jobIDsRaw, &jobIDs); err != nil {
		return nil, err
	}

	return entity.RestoreBatchGroup(id, processor, totalItems, jobIDs, isSplit, createdAt, updatedAt), nil
}

func scanJob(row rowScanner) (*entity.BatchJob, error) {
	var (
		id             uuid.UUID
		groupID        uuid.UUID
		chunkIndex     int
		remoteID       *string
		statusRaw      string
		completedCount int
		failedCount    int
		errorMessage   *string
		chunkRaw       []byte
		resultsRaw     []byte
		collected      bool
		createdAt      time.Time
		submittedAt    *time.Time
		completedAt    *time.Time
		updatedAt      time.Time
	)

	err := row.Scan(
		&id, &groupID, &chunkIndex, &remoteID, &statusRaw, &completedCount, &failedCount,
		&errorMessage, &chunkRaw, &resultsRaw, &collected,
		&createdAt, &submittedAt, &completedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	status, err := valueobject.NewJobStatus(statusRaw)
	if err != nil {
		return nil, err
	}

	var chunk []entity.WorkItem
	if err := json.Unmarshal(chunkRaw, &chunk); err != nil {
		return nil, err
	}

	var results map[string]entity.ItemResult
	if len(resultsRaw) > 0 {
		if err := json.Unmarshal(resultsRaw, &results); err != nil {
			return nil, err
		}
	}

	return entity.RestoreBatchJob(
		id, groupID, chunkIndex, remoteID, status, completedCount, failedCount,
		errorMessage, chunk, results, collected,
		createdAt, submittedAt, completedAt, updatedAt,
	), nil
}
