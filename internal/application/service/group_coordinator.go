package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"batchflow/internal/application/common/slogger"
	"batchflow/internal/domain/entity"
	domainservice "batchflow/internal/domain/service"
	"batchflow/internal/domain/valueobject"
	"batchflow/internal/port/outbound"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultMaxConcurrentPolls = 8

// JobStatusSummary is the per-job breakdown included in group reports.
type JobStatusSummary struct {
	JobID          uuid.UUID             `json:"job_id"`
	ChunkIndex     int                   `json:"chunk_index"`
	Status         valueobject.JobStatus `json:"status"`
	RemoteID       *string               `json:"remote_id,omitempty"`
	ItemCount      int                   `json:"item_count"`
	CompletedCount int                   `json:"completed_count"`
	FailedCount    int                   `json:"failed_count"`
	Error          string                `json:"error,omitempty"`
}

// GroupStatusReport aggregates the state of one group. Status is always
// derived fresh from the member jobs' current states.
type GroupStatusReport struct {
	GroupID          uuid.UUID               `json:"group_id"`
	Processor        string                  `json:"processor"`
	Status           valueobject.GroupStatus `json:"status"`
	IsSplit          bool                    `json:"is_split"`
	TotalBatches     int                     `json:"total_batches"`
	CompletedBatches int                     `json:"completed_batches"`
	FailedBatches    int                     `json:"failed_batches"`
	TotalItems       int                     `json:"total_items"`
	CompletedItems   int                     `json:"completed_items"`
	Jobs             []JobStatusSummary      `json:"jobs"`
}

// GroupResult is the merged result set of one group. Partial collection is
// an expected outcome: jobs not yet completed are listed as pending, not
// treated as errors.
type GroupResult struct {
	GroupID     uuid.UUID                    `json:"group_id"`
	Status      valueobject.GroupStatus      `json:"status"`
	Results     map[string]entity.ItemResult `json:"results"`
	PendingJobs []uuid.UUID                  `json:"pending_jobs,omitempty"`
	FailedJobs  []uuid.UUID                  `json:"failed_jobs,omitempty"`
	JobErrors   map[uuid.UUID]string         `json:"job_errors,omitempty"`
}

// GroupCoordinator is the single entry point for multi-chunk operations: it
// splits a work item collection, owns one job per chunk, and presents the
// set as one logical operation.
type GroupCoordinator struct {
	jobs               *JobService
	store              outbound.GroupStore
	events             outbound.EventPublisher
	maxConcurrentPolls int
}

// NewGroupCoordinator creates a GroupCoordinator. maxConcurrentPolls bounds
// the refresh/collect fan-out; values below 1 fall back to the default.
func NewGroupCoordinator(
	provider outbound.BatchProvider,
	store outbound.GroupStore,
	events outbound.EventPublisher,
	maxConcurrentPolls int,
) *GroupCoordinator {
	if maxConcurrentPolls < 1 {
		maxConcurrentPolls = defaultMaxConcurrentPolls
	}
	return &GroupCoordinator{
		jobs:               NewJobService(provider, store, events),
		store:              store,
		events:             events,
		maxConcurrentPolls: maxConcurrentPolls,
	}
}

// CreateGroup splits items into chunks, persists one job per chunk, and
// submits them all best-effort. A submission failure on one job records
// that job as failed and does not prevent submitting the others.
func (c *GroupCoordinator) CreateGroup(
	ctx context.Context,
	items []entity.WorkItem,
	processor string,
	maxSize int,
) (*entity.BatchGroup, error) {
	if processor == "" {
		return nil, entity.NewDomainError("processor cannot be empty", "INVALID_PROCESSOR")
	}

	chunks, err := domainservice.Split(items, maxSize)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, entity.NewDomainError("cannot create a group with no work items", "EMPTY_GROUP")
	}

	group := entity.NewBatchGroup(processor, len(items), len(chunks) > 1)
	jobs := make([]*entity.BatchJob, 0, len(chunks))
	for _, chunk := range chunks {
		job := entity.NewBatchJob(group.ID(), chunk.Index, chunk.Items)
		group.AddJob(job.ID())
		jobs = append(jobs, job)
	}

	if err := c.store.SaveGroup(ctx, group); err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if err := c.store.SaveJob(ctx, job); err != nil {
			return nil, err
		}
	}

	c.publishGroupCreated(ctx, group)

	for _, job := range jobs {
		if err := c.jobs.Submit(ctx, job); err != nil {
			var subErr *entity.SubmissionError
			if !errors.As(err, &subErr) {
				return nil, err
			}
			slogger.ErrorWithError(ctx, err, "Job submission failed, recording and continuing", slogger.Fields3(
				"group_id", group.ID().String(),
				"job_id", job.ID().String(),
				"chunk_index", job.ChunkIndex(),
			))
			if err := c.recordSubmissionFailure(ctx, job, subErr); err != nil {
				return nil, err
			}
		}
	}

	slogger.Info(ctx, "Created batch group", slogger.Fields3(
		"group_id", group.ID().String(),
		"total_items", group.TotalItems(),
		"total_batches", group.JobCount(),
	))
	return group, nil
}

// RefreshGroup polls every non-terminal member job with bounded concurrency
// and returns the freshly derived aggregate. Member jobs still in created
// are (re)submitted first: a crash between provider acceptance and the
// submitted transition being persisted leaves a job in created, and
// at-least-once submission makes sending it again safe. A poll or submit
// failure on one job is contained to that job's summary and never fails the
// group refresh.
func (c *GroupCoordinator) RefreshGroup(ctx context.Context, groupID uuid.UUID) (*GroupStatusReport, error) {
	group, jobs, err := c.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	refreshErrs := make([]error, len(jobs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.maxConcurrentPolls)
	for i, job := range jobs {
		if job.IsTerminal() {
			continue
		}
		i, job := i, job
		eg.Go(func() error {
			if job.Status() == valueobject.JobStatusCreated {
				refreshErrs[i] = c.resubmit(egCtx, job)
			} else {
				refreshErrs[i] = c.jobs.Refresh(egCtx, job)
			}
			return egCtx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return c.buildReport(group, jobs, refreshErrs), nil
}

// GetGroupStatus derives the aggregate from persisted state without
// touching the provider.
func (c *GroupCoordinator) GetGroupStatus(ctx context.Context, groupID uuid.UUID) (*GroupStatusReport, error) {
	group, jobs, err := c.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return c.buildReport(group, jobs, make([]error, len(jobs))), nil
}

// CollectGroup downloads and merges per-item results from every completed
// member job. Already-collected jobs are served from their cache without a
// provider call, so repeated collection with no intervening state change is
// idempotent. Non-completed jobs are reported as pending or failed.
func (c *GroupCoordinator) CollectGroup(ctx context.Context, groupID uuid.UUID) (*GroupResult, error) {
	group, jobs, err := c.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	perJob := make([]map[string]entity.ItemResult, len(jobs))
	collectErrs := make([]error, len(jobs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.maxConcurrentPolls)
	for i, job := range jobs {
		if job.Status() != valueobject.JobStatusCompleted {
			continue
		}
		i, job := i, job
		eg.Go(func() error {
			perJob[i], collectErrs[i] = c.jobs.Collect(egCtx, job)
			return egCtx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	result := &GroupResult{
		GroupID:   group.ID(),
		Results:   make(map[string]entity.ItemResult),
		JobErrors: make(map[uuid.UUID]string),
	}
	statuses := make([]valueobject.JobStatus, 0, len(jobs))
	for i, job := range jobs {
		statuses = append(statuses, job.Status())
		switch {
		case job.Status() == valueobject.JobStatusCompleted:
			if collectErrs[i] != nil {
				result.JobErrors[job.ID()] = collectErrs[i].Error()
				continue
			}
			for key, entry := range perJob[i] {
				result.Results[key] = entry
			}
		case job.IsTerminal():
			result.FailedJobs = append(result.FailedJobs, job.ID())
		default:
			result.PendingJobs = append(result.PendingJobs, job.ID())
		}
	}
	result.Status = valueobject.DeriveGroupStatus(statuses)
	return result, nil
}

// RetryFailed rebuilds and resubmits only the failed member jobs, replacing
// each in place (same chunk contents, new job identity) while leaving
// completed jobs untouched. Safe to call repeatedly.
func (c *GroupCoordinator) RetryFailed(ctx context.Context, groupID uuid.UUID) (*entity.BatchGroup, error) {
	group, jobs, err := c.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	for i, job := range jobs {
		if job.Status() != valueobject.JobStatusFailed {
			continue
		}

		replacement := entity.NewBatchJob(group.ID(), job.ChunkIndex(), job.Chunk())
		if err := c.store.SaveJob(ctx, replacement); err != nil {
			return nil, err
		}
		if err := group.ReplaceJob(i, replacement.ID()); err != nil {
			return nil, err
		}
		if err := c.store.SaveGroup(ctx, group); err != nil {
			return nil, err
		}
		c.publishJobReplaced(ctx, group, job.ID(), replacement)

		if err := c.jobs.Submit(ctx, replacement); err != nil {
			var subErr *entity.SubmissionError
			if !errors.As(err, &subErr) {
				return nil, err
			}
			if err := c.recordSubmissionFailure(ctx, replacement, subErr); err != nil {
				return nil, err
			}
		}
		slogger.Info(ctx, "Replaced failed job", slogger.Fields3(
			"group_id", group.ID().String(),
			"old_job_id", job.ID().String(),
			"new_job_id", replacement.ID().String(),
		))
	}

	return group, nil
}

// CancelGroup cancels every non-terminal member job. Already-terminal jobs
// are left as-is; a group ending with a mix of completed and cancelled jobs
// is a valid terminal outcome.
func (c *GroupCoordinator) CancelGroup(ctx context.Context, groupID uuid.UUID) (*GroupStatusReport, error) {
	group, jobs, err := c.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	cancelErrs := make([]error, len(jobs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.maxConcurrentPolls)
	for i, job := range jobs {
		if job.IsTerminal() {
			continue
		}
		i, job := i, job
		eg.Go(func() error {
			cancelErrs[i] = c.jobs.Cancel(egCtx, job)
			return egCtx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return c.buildReport(group, jobs, cancelErrs), nil
}

// ListActiveGroups returns every group that still has non-terminal jobs.
func (c *GroupCoordinator) ListActiveGroups(ctx context.Context) ([]*entity.BatchGroup, error) {
	return c.store.ListActiveGroups(ctx)
}

// GroupJobHistory returns every job ever attached to a group in creation
// order, including jobs replaced by retries.
func (c *GroupCoordinator) GroupJobHistory(ctx context.Context, groupID uuid.UUID) ([]JobStatusSummary, error) {
	group, err := c.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, entity.NewDomainError(
			fmt.Sprintf("group %s not found", groupID), "GROUP_NOT_FOUND",
		)
	}

	jobs, err := c.store.GetJobsByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	summaries := make([]JobStatusSummary, 0, len(jobs))
	for _, job := range jobs {
		summary := JobStatusSummary{
			JobID:          job.ID(),
			ChunkIndex:     job.ChunkIndex(),
			Status:         job.Status(),
			RemoteID:       job.RemoteID(),
			ItemCount:      job.ItemCount(),
			CompletedCount: job.CompletedCount(),
			FailedCount:    job.FailedCount(),
		}
		if msg := job.ErrorMessage(); msg != nil {
			summary.Error = *msg
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// loadGroup fetches a group and its current member jobs in chunk order.
func (c *GroupCoordinator) loadGroup(
	ctx context.Context,
	groupID uuid.UUID,
) (*entity.BatchGroup, []*entity.BatchJob, error) {
	group, err := c.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	if group == nil {
		return nil, nil, entity.NewDomainError(
			fmt.Sprintf("group %s not found", groupID), "GROUP_NOT_FOUND",
		)
	}

	jobIDs := group.JobIDs()
	jobs := make([]*entity.BatchJob, 0, len(jobIDs))
	for _, jobID := range jobIDs {
		job, err := c.store.GetJob(ctx, jobID)
		if err != nil {
			return nil, nil, err
		}
		if job == nil {
			return nil, nil, entity.NewDomainError(
				fmt.Sprintf("job %s referenced by group %s not found", jobID, groupID), "JOB_NOT_FOUND",
			)
		}
		jobs = append(jobs, job)
	}
	return group, jobs, nil
}

func (c *GroupCoordinator) buildReport(
	group *entity.BatchGroup,
	jobs []*entity.BatchJob,
	opErrs []error,
) *GroupStatusReport {
	report := &GroupStatusReport{
		GroupID:      group.ID(),
		Processor:    group.Processor(),
		IsSplit:      group.IsSplit(),
		TotalBatches: len(jobs),
		TotalItems:   group.TotalItems(),
		Jobs:         make([]JobStatusSummary, 0, len(jobs)),
	}

	statuses := make([]valueobject.JobStatus, 0, len(jobs))
	for i, job := range jobs {
		statuses = append(statuses, job.Status())
		summary := JobStatusSummary{
			JobID:          job.ID(),
			ChunkIndex:     job.ChunkIndex(),
			Status:         job.Status(),
			RemoteID:       job.RemoteID(),
			ItemCount:      job.ItemCount(),
			CompletedCount: job.CompletedCount(),
			FailedCount:    job.FailedCount(),
		}
		if msg := job.ErrorMessage(); msg != nil {
			summary.Error = *msg
		}
		if opErrs[i] != nil {
			summary.Error = opErrs[i].Error()
		}
		report.Jobs = append(report.Jobs, summary)

		switch job.Status() {
		case valueobject.JobStatusCompleted:
			report.CompletedBatches++
			report.CompletedItems += job.ItemCount()
		case valueobject.JobStatusFailed:
			report.FailedBatches++
		}
	}
	report.Status = valueobject.DeriveGroupStatus(statuses)
	return report
}

// resubmit pushes a persisted created job through the submit path. Jobs land
// here on recovery after a crash cut off their original submission.
func (c *GroupCoordinator) resubmit(ctx context.Context, job *entity.BatchJob) error {
	slogger.Info(ctx, "Submitting job left in created state", slogger.Fields2(
		"group_id", job.GroupID().String(),
		"job_id", job.ID().String(),
	))
	err := c.jobs.Submit(ctx, job)
	if err == nil {
		return nil
	}
	var subErr *entity.SubmissionError
	if errors.As(err, &subErr) {
		if recordErr := c.recordSubmissionFailure(ctx, job, subErr); recordErr != nil {
			return recordErr
		}
	}
	return err
}

func (c *GroupCoordinator) recordSubmissionFailure(
	ctx context.Context,
	job *entity.BatchJob,
	subErr *entity.SubmissionError,
) error {
	if err := job.MarkFailed(subErr.Error()); err != nil {
		return err
	}
	return c.store.SaveJob(ctx, job)
}

func (c *GroupCoordinator) publishGroupCreated(ctx context.Context, group *entity.BatchGroup) {
	if c.events == nil {
		return
	}
	event := outbound.LifecycleEvent{
		Kind:      outbound.EventGroupCreated,
		GroupID:   group.ID(),
		ItemCount: group.TotalItems(),
		Timestamp: time.Now(),
	}
	if err := c.events.PublishLifecycleEvent(ctx, event); err != nil {
		slogger.ErrorWithError(ctx, err, "Failed to publish group created event",
			slogger.Field("group_id", group.ID().String()))
	}
}

func (c *GroupCoordinator) publishJobReplaced(
	ctx context.Context,
	group *entity.BatchGroup,
	oldJobID uuid.UUID,
	replacement *entity.BatchJob,
) {
	if c.events == nil {
		return
	}
	event := outbound.LifecycleEvent{
		Kind:       outbound.EventJobReplaced,
		GroupID:    group.ID(),
		JobID:      replacement.ID(),
		ReplacedID: oldJobID,
		ToStatus:   replacement.Status().String(),
		ItemCount:  replacement.ItemCount(),
		Timestamp:  time.Now(),
	}
	if err := c.events.PublishLifecycleEvent(ctx, event); err != nil {
		slogger.ErrorWithError(ctx, err, "Failed to publish job replaced event",
			slogger.Field("group_id", group.ID().String()))
	}
}
