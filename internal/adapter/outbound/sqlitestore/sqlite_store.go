// Package sqlitestore provides an embedded SQLite-backed GroupStore for
// single-process deployments that do not run PostgreSQL.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"batchflow/internal/domain/entity"
	"batchflow/internal/domain/valueobject"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS batch_groups (
	id          TEXT PRIMARY KEY,
	processor   TEXT NOT NULL,
	total_items INTEGER NOT NULL,
	job_ids     TEXT NOT NULL DEFAULT '[]',
	is_split    INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS batch_jobs (
	id              TEXT PRIMARY KEY,
	group_id        TEXT NOT NULL REFERENCES batch_groups (id),
	chunk_index     INTEGER NOT NULL,
	remote_id       TEXT,
	status          TEXT NOT NULL,
	completed_count INTEGER NOT NULL DEFAULT 0,
	failed_count    INTEGER NOT NULL DEFAULT 0,
	error_message   TEXT,
	chunk           TEXT NOT NULL,
	results         TEXT,
	collected       INTEGER NOT NULL DEFAULT 0,
	created_at      TEXT NOT NULL,
	submitted_at    TEXT,
	completed_at    TEXT,
	updated_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_batch_jobs_group_id ON batch_jobs (group_id);
CREATE INDEX IF NOT EXISTS idx_batch_jobs_status ON batch_jobs (status);
`

// Store is a SQLite implementation of outbound.GroupStore.
type Store struct {
	db *sql.DB
}

// New opens (creating if necessary) the SQLite database at path and
// initializes the schema. Use ":memory:" for an ephemeral store.
func New(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveGroup upserts a group record.
func (s *Store) SaveGroup(ctx context.Context, group *entity.BatchGroup) error {
	if group == nil {
		return errors.New("group cannot be nil")
	}
	jobIDs, err := json.Marshal(group.JobIDs())
	if err != nil {
		return fmt.Errorf("marshal group job IDs: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO batch_groups (id, processor, total_items, job_ids, is_split, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			job_ids = excluded.job_ids,
			updated_at = excluded.updated_at`,
		group.ID().String(),
		group.Processor(),
		group.TotalItems(),
		string(jobIDs),
		group.IsSplit(),
		formatTime(group.CreatedAt()),
		formatTime(group.UpdatedAt()),
	)
	if err != nil {
		return fmt.Errorf("save batch group: %w", err)
	}
	return nil
}

// SaveJob upserts a job record.
func (s *Store) SaveJob(ctx context.Context, job *entity.BatchJob) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}
	chunk, err := json.Marshal(job.Chunk())
	if err != nil {
		return fmt.Errorf("marshal job chunk: %w", err)
	}
	var results *string
	if job.Results() != nil {
		raw, err := json.Marshal(job.Results())
		if err != nil {
			return fmt.Errorf("marshal job results: %w", err)
		}
		encoded := string(raw)
		results = &encoded
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO batch_jobs (
			id, group_id, chunk_index, remote_id, status, completed_count, failed_count,
			error_message, chunk, results, collected, created_at, submitted_at, completed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			remote_id = excluded.remote_id,
			status = excluded.status,
			completed_count = excluded.completed_count,
			failed_count = excluded.failed_count,
			error_message = excluded.error_message,
			results = excluded.results,
			collected = excluded.collected,
			submitted_at = excluded.submitted_at,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at`,
		job.ID().String(),
		job.GroupID().String(),
		job.ChunkIndex(),
		job.RemoteID(),
		job.Status().String(),
		job.CompletedCount(),
		job.FailedCount(),
		job.ErrorMessage(),
		string(chunk),
		results,
		job.Collected(),
		formatTime(job.CreatedAt()),
		formatTimePtr(job.SubmittedAt()),
		formatTimePtr(job.CompletedAt()),
		formatTime(job.UpdatedAt()),
	)
	if err != nil {
		return fmt.Errorf("save batch job: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID, nil if not found.
func (s *Store) GetGroup(ctx context.Context, id uuid.UUID) (*entity.BatchGroup, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, processor, total_items, job_ids, is_split, created_at, updated_at
		FROM batch_groups WHERE id = ?`, id.String())

	group, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Not found is not an error condition for Get methods
	}
	if err != nil {
		return nil, fmt.Errorf("get batch group by ID: %w", err)
	}
	return group, nil
}

// GetJob retrieves a job by ID, nil if not found.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*entity.BatchJob, error) {
	row := s.db.QueryRowContext(ctx, jobSelect+` WHERE id = ?`, id.String())

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Not found is not an error condition for Get methods
	}
	if err != nil {
		return nil, fmt.Errorf("get batch job by ID: %w", err)
	}
	return job, nil
}

// GetJobsByGroup retrieves all jobs for a group ordered by creation time.
func (s *Store) GetJobsByGroup(ctx context.Context, groupID uuid.UUID) ([]*entity.BatchJob, error) {
	rows, err := s.db.QueryContext(ctx, jobSelect+` WHERE group_id = ? ORDER BY created_at ASC`, groupID.String())
	if err != nil {
		return nil, fmt.Errorf("get batch jobs by group: %w", err)
	}
	defer rows.Close()

	jobs := make([]*entity.BatchJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch job rows: %w", err)
	}
	return jobs, nil
}

// ListActiveGroups retrieves groups that still have non-terminal jobs.
func (s *Store) ListActiveGroups(ctx context.Context) ([]*entity.BatchGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, processor, total_items, job_ids, is_split, created_at, updated_at
		FROM batch_groups g
		WHERE EXISTS (
			SELECT 1 FROM batch_jobs j
			WHERE j.group_id = g.id
			  AND j.status NOT IN ('completed', 'failed', 'cancelled')
		)
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active groups: %w", err)
	}
	defer rows.Close()

	groups := make([]*entity.BatchGroup, 0)
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch group row: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch group rows: %w", err)
	}
	return groups, nil
}

const jobSelect = `
	SELECT id, group_id, chunk_index, remote_id, status, completed_count, failed_count,
		error_message, chunk, results, collected, created_at, submitted_at, completed_at, updated_at
	FROM batch_jobs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*entity.BatchGroup, error) {
	var (
		idRaw      string
		processor  string
		totalItems int
		jobIDsRaw  string
		isSplit    bool
		createdRaw string
		updatedRaw string
	)
	if err := row.Scan(&idRaw, &processor, &totalItems, &jobIDsRaw, &isSplit, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idRaw)
	if err != nil {
		return nil, err
	}
	var jobIDs []uuid.UUID
	if err := json.Unmarshal([]byte(jobIDsRaw), &jobIDs); err != nil {
		return nil, err
	}
	createdAt, err := parseTime(createdRaw)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(updatedRaw)
	if err != nil {
		return nil, err
	}

	return entity.RestoreBatchGroup(id, processor, totalItems, jobIDs, isSplit, createdAt, updatedAt), nil
}

func scanJob(row rowScanner) (*entity.BatchJob, error) {
	var (
		idRaw          string
		groupIDRaw     string
		chunkIndex     int
		remoteID       *string
		statusRaw      string
		completedCount int
		failedCount    int
		errorMessage   *string
		chunkRaw       string
		resultsRaw     *string
		collected      bool
		createdRaw     string
		submittedRaw   *string
		completedRaw   *string
		updatedRaw     string
	)
	err := row.Scan(
		&idRaw, &groupIDRaw, &chunkIndex, &remoteID, &statusRaw, &completedCount, &failedCount,
		&errorMessage, &chunkRaw, &resultsRaw, &collected,
		&createdRaw, &submittedRaw, &completedRaw, &updatedRaw,
	)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idRaw)
	if err != nil {
		return nil, err
	}
	groupID, err := uuid.Parse(groupIDRaw)
	if err != nil {
		return nil, err
	}
	status, err := valueobject.NewJobStatus(statusRaw)
	if err != nil {
		return nil, err
	}
	var chunk []entity.WorkItem
	if err := json.Unmarshal([]byte(chunkRaw), &chunk); err != nil {
		return nil, err
	}
	var results map[string]entity.ItemResult
	if resultsRaw != nil {
		if err := json.Unmarshal([]byte(*resultsRaw), &results); err != nil {
			return nil, err
		}
	}
	createdAt, err := parseTime(createdRaw)
	if err != nil {
		return nil, err
	}
	submittedAt, err := parseTimePtr(submittedRaw)
	if err != nil {
		return nil, err
	}
	completedAt, err := parseTimePtr(completedRaw)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(updatedRaw)
	if err != nil {
		return nil, err
	}

	return entity.RestoreBatchJob(
		id, groupID, chunkIndex, remoteID, status, completedCount, failedCount,
		errorMessage, chunk, results, collected,
		createdAt, submittedAt, completedAt, updatedAt,
	), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
