// Package memstore provides an in-memory GroupStore for tests and for
// single-shot CLI runs that do not need durability.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"batchflow/internal/domain/entity"

	"github.com/google/uuid"
)

// Store is an in-memory implementation of outbound.GroupStore. Records are
// deep-copied on save and load so callers never share mutable state with
// the store.
type Store struct {
	mu     sync.RWMutex
	groups map[uuid.UUID]*entity.BatchGroup
	jobs   map[uuid.UUID]*entity.BatchJob
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		groups: make(map[uuid.UUID]*entity.BatchGroup),
		jobs:   make(map[uuid.UUID]*entity.BatchJob),
	}
}

// SaveGroup persists a deep copy of the group.
func (s *Store) SaveGroup(_ context.Context, group *entity.BatchGroup) error {
	if group == nil {
		return entity.NewDomainError("group cannot be nil", "INVALID_ARGUMENT")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[group.ID()] = cloneGroup(group)
	return nil
}

// SaveJob persists a deep copy of the job.
func (s *Store) SaveJob(_ context.Context, job *entity.BatchJob) error {
	if job == nil {
		return entity.NewDomainError("job cannot be nil", "INVALID_ARGUMENT")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID()] = cloneJob(job)
	return nil
}

// GetGroup retrieves a group by ID, nil if unknown.
func (s *Store) GetGroup(_ context.Context, id uuid.UUID) (*entity.BatchGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	group, ok := s.groups[id]
	if !ok {
		return nil, nil
	}
	return cloneGroup(group), nil
}

// GetJob retrieves a job by ID, nil if unknown.
func (s *Store) GetJob(_ context.Context, id uuid.UUID) (*entity.BatchJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return cloneJob(job), nil
}

// GetJobsByGroup retrieves all jobs belonging to a group, including jobs
// replaced by retries, ordered by creation time.
func (s *Store) GetJobsByGroup(_ context.Context, groupID uuid.UUID) ([]*entity.BatchJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var jobs []*entity.BatchJob
	for _, job := range s.jobs {
		if job.GroupID() == groupID {
			jobs = append(jobs, cloneJob(job))
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt().Before(jobs[j].CreatedAt())
	})
	return jobs, nil
}

// ListActiveGroups retrieves groups with at least one non-terminal member
// job, ordered by creation time.
func (s *Store) ListActiveGroups(_ context.Context) ([]*entity.BatchGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []*entity.BatchGroup
	for _, group := range s.groups {
		for _, jobID := range group.JobIDs() {
			job, ok := s.jobs[jobID]
			if ok && !job.IsTerminal() {
				active = append(active, cloneGroup(group))
				break
			}
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt().Before(active[j].CreatedAt())
	})
	return active, nil
}

func cloneGroup(g *entity.BatchGroup) *entity.BatchGroup {
	return entity.RestoreBatchGroup(
		g.ID(),
		g.Processor(),
		g.TotalItems(),
		g.JobIDs(),
		g.IsSplit(),
		g.CreatedAt(),
		g.UpdatedAt(),
	)
}

func cloneJob(j *entity.BatchJob) *entity.BatchJob {
	return entity.RestoreBatchJob(
		j.ID(),
		j.GroupID(),
		j.ChunkIndex(),
		cloneStringPtr(j.RemoteID()),
		j.Status(),
		j.CompletedCount(),
		j.FailedCount(),
		cloneStringPtr(j.ErrorMessage()),
		j.Chunk(),
		j.Results(),
		j.Collected(),
		j.CreatedAt(),
		cloneTimePtr(j.SubmittedAt()),
		cloneTimePtr(j.CompletedAt()),
		j.UpdatedAt(),
	)
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
