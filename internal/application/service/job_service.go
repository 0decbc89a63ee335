package service

import (
	"context"
	"time"

	"batchflow/internal/application/common/slogger"
	"batchflow/internal/domain/entity"
	"batchflow/internal/domain/valueobject"
	"batchflow/internal/port/outbound"
)

// BuildSubmission emits one provider request per work item in the chunk,
// tagged with its correlation key. Pure function of the chunk.
func BuildSubmission(chunk []entity.WorkItem) ([]outbound.ProviderRequest, error) {
	requests := make([]outbound.ProviderRequest, 0, len(chunk))
	for _, item := range chunk {
		key, err := item.CorrelationKey()
		if err != nil {
			return nil, err
		}
		requests = append(requests, outbound.ProviderRequest{
			CorrelationKey: key.String(),
			Payload:        item.Payload,
		})
	}
	return requests, nil
}

// JobService runs single-job lifecycle operations against the provider and
// persists every transition before it is considered committed. It never
// retries on its own; retry policy belongs to the coordinator and its
// callers. Per-job state is single-writer: two concurrent calls touching
// the same job must be serialized by the caller.
type JobService struct {
	provider outbound.BatchProvider
	store    outbound.GroupStore
	events   outbound.EventPublisher
}

// NewJobService creates a JobService. The event publisher may be nil, in
// which case lifecycle events are dropped.
func NewJobService(
	provider outbound.BatchProvider,
	store outbound.GroupStore,
	events outbound.EventPublisher,
) *JobService {
	return &JobService{provider: provider, store: store, events: events}
}

// Submit builds the chunk's submission and sends it to the provider. On
// success the job transitions created -> submitted and the remote ID is
// recorded; on failure the job stays created and a SubmissionError is
// returned for the coordinator to handle.
func (s *JobService) Submit(ctx context.Context, job *entity.BatchJob) error {
	if job.Status() != valueobject.JobStatusCreated {
		return entity.NewDomainError("job has already been submitted", "ALREADY_SUBMITTED")
	}

	requests, err := BuildSubmission(job.Chunk())
	if err != nil {
		return &entity.SubmissionError{JobID: job.ID(), ChunkSize: job.ItemCount(), Err: err}
	}

	remoteID, err := s.provider.Submit(ctx, requests)
	if err != nil {
		return &entity.SubmissionError{JobID: job.ID(), ChunkSize: job.ItemCount(), Err: err}
	}

	prev := job.Status()
	if err := job.MarkSubmitted(remoteID); err != nil {
		return err
	}
	if err := s.store.SaveJob(ctx, job); err != nil {
		return err
	}
	s.publishTransition(ctx, job, prev)
	return nil
}

// Refresh polls the provider for current status and counts and folds them
// into the job. No-op on terminal jobs and on jobs that were never
// submitted. A provider failure surfaces as a PollError with the job's last
// known good state untouched.
func (s *JobService) Refresh(ctx context.Context, job *entity.BatchJob) error {
	if job.IsTerminal() {
		return nil
	}
	remoteID := job.RemoteID()
	if remoteID == nil {
		return nil
	}

	polled, err := s.provider.Poll(ctx, *remoteID)
	if err != nil {
		return &entity.PollError{JobID: job.ID(), RemoteID: *remoteID, Err: err}
	}

	prev := job.Status()
	mapped := valueobject.FromProviderStatus(polled.Status)
	job.ApplyProviderStatus(mapped, polled.CompletedCount, polled.FailedCount)
	if err := s.store.SaveJob(ctx, job); err != nil {
		return err
	}
	if job.Status() != prev {
		s.publishTransition(ctx, job, prev)
	}
	return nil
}

// Collect downloads and caches the job's per-item results. Only valid once
// the job is completed; an already-collected job returns its cached results
// without touching the provider. Results whose correlation key cannot be
// decoded are reported as unresolvable entries rather than aborting the
// collection.
func (s *JobService) Collect(ctx context.Context, job *entity.BatchJob) (map[string]entity.ItemResult, error) {
	if job.Collected() {
		return job.Results(), nil
	}
	if job.Status() != valueobject.JobStatusCompleted {
		return nil, &entity.NotReadyError{JobID: job.ID(), Status: job.Status()}
	}

	remoteID := job.RemoteID()
	if remoteID == nil {
		return nil, entity.NewDomainError("completed job has no remote ID", "MISSING_REMOTE_ID")
	}

	downloaded, err := s.provider.Download(ctx, *remoteID)
	if err != nil {
		return nil, &entity.PollError{JobID: job.ID(), RemoteID: *remoteID, Err: err}
	}

	results := make(map[string]entity.ItemResult, len(downloaded))
	for _, r := range downloaded {
		entry := entity.ItemResult{
			Key:          r.CorrelationKey,
			Payload:      r.Payload,
			ErrorMessage: r.Error,
			Failed:       r.Failed || r.Error != "",
		}
		if _, _, _, _, decodeErr := valueobject.CorrelationKey(r.CorrelationKey).Decode(); decodeErr != nil {
			entry.Failed = true
			entry.Unresolvable = true
			entry.ErrorMessage = decodeErr.Error()
			slogger.Warn(ctx, "Provider echoed undecodable correlation key", slogger.Fields2(
				"job_id", job.ID().String(),
				"key", r.CorrelationKey,
			))
		}
		results[entry.Key] = entry
	}

	if err := job.MarkCollected(results); err != nil {
		return nil, err
	}
	if err := s.store.SaveJob(ctx, job); err != nil {
		return nil, err
	}
	return job.Results(), nil
}

// Cancel requests cancellation of the remote job. Best-effort: if the
// provider reports the job already reached a terminal state, that state
// wins. Jobs that were never submitted are cancelled locally.
func (s *JobService) Cancel(ctx context.Context, job *entity.BatchJob) error {
	if job.IsTerminal() {
		return nil
	}

	prev := job.Status()
	remoteID := job.RemoteID()
	if remoteID == nil {
		if err := job.MarkCancelled(); err != nil {
			return err
		}
	} else {
		polled, err := s.provider.Cancel(ctx, *remoteID)
		if err != nil {
			return &entity.PollError{JobID: job.ID(), RemoteID: *remoteID, Err: err}
		}
		mapped := valueobject.FromProviderStatus(polled.Status)
		if mapped.IsTerminal() && mapped != valueobject.JobStatusCancelled {
			job.ApplyProviderStatus(mapped, polled.CompletedCount, polled.FailedCount)
		} else if err := job.MarkCancelled(); err != nil {
			return err
		}
	}

	if err := s.store.SaveJob(ctx, job); err != nil {
		return err
	}
	if job.Status() != prev {
		s.publishTransition(ctx, job, prev)
	}
	return nil
}

// publishTransition emits a lifecycle event for a committed transition.
// Publishing is best-effort and never fails the operation.
func (s *JobService) publishTransition(ctx context.Context, job *entity.BatchJob, from valueobject.JobStatus) {
	if s.events == nil {
		return
	}
	event := outbound.LifecycleEvent{
		Kind:       outbound.EventJobTransition,
		GroupID:    job.GroupID(),
		JobID:      job.ID(),
		FromStatus: from.String(),
		ToStatus:   job.Status().String(),
		ItemCount:  job.ItemCount(),
		Timestamp:  time.Now(),
	}
	if err := s.events.PublishLifecycleEvent(ctx, event); err != nil {
		slogger.ErrorWithError(ctx, err, "Failed to publish job transition event", slogger.Fields2(
			"job_id", job.ID().String(),
			"to_status", job.Status().String(),
		))
	}
}
