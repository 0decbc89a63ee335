package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"batchflow/internal/adapter/outbound/memstore"
	"batchflow/internal/adapter/outbound/mock"
	"batchflow/internal/domain/entity"
	"batchflow/internal/domain/valueobject"
	"batchflow/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type coordinatorFixture struct {
	coordinator *GroupCoordinator
	provider    *mock.BatchProvider
	store       *memstore.Store
	events      *mock.EventPublisher
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()
	provider := mock.NewBatchProvider()
	store := memstore.New()
	events := mock.NewEventPublisher()
	return &coordinatorFixture{
		coordinator: NewGroupCoordinator(provider, store, events, 4),
		provider:    provider,
		store:       store,
		events:      events,
	}
}

// currentJobs loads the group's current member jobs in chunk order.
func (f *coordinatorFixture) currentJobs(t *testing.T, groupID uuid.UUID) []*entity.BatchJob {
	t.Helper()
	group, err := f.store.GetGroup(context.Background(), groupID)
	require.NoError(t, err)
	require.NotNil(t, group)

	jobs := make([]*entity.BatchJob, 0, group.JobCount())
	for _, jobID := range group.JobIDs() {
		job, err := f.store.GetJob(context.Background(), jobID)
		require.NoError(t, err)
		require.NotNil(t, job)
		jobs = append(jobs, job)
	}
	return jobs
}

// seedCreatedJob persists a group whose only member job never left created,
// the state a crash before provider acceptance leaves behind.
func (f *coordinatorFixture) seedCreatedJob(t *testing.T, items int) (*entity.BatchGroup, *entity.BatchJob) {
	t.Helper()
	group := entity.NewBatchGroup("embed-v1", items, false)
	job := entity.NewBatchJob(group.ID(), 0, makeChunk(items))
	group.AddJob(job.ID())
	require.NoError(t, f.store.SaveGroup(context.Background(), group))
	require.NoError(t, f.store.SaveJob(context.Background(), job))
	return group, job
}

// completeAllJobs drives every member job to completed through the provider.
func (f *coordinatorFixture) completeAllJobs(t *testing.T, groupID uuid.UUID) {
	t.Helper()
	f.provider.PollFunc = func(context.Context, string) (outbound.ProviderStatus, error) {
		return outbound.ProviderStatus{Status: "completed"}, nil
	}
	_, err := f.coordinator.RefreshGroup(context.Background(), groupID)
	require.NoError(t, err)
	f.provider.PollFunc = nil
}

func TestGroupCoordinatorCreateGroup(t *testing.T) {
	t.Run("should keep a collection under the limit as one unsplit job", func(t *testing.T) {
		f := newCoordinatorFixture(t)

		group, err := f.coordinator.CreateGroup(context.Background(), makeChunk(20), "embed-v1", 30)
		require.NoError(t, err)

		assert.False(t, group.IsSplit())
		assert.Equal(t, 1, group.JobCount())
		assert.Equal(t, 20, group.TotalItems())
	})

	t.Run("should keep a collection at the limit as one unsplit job", func(t *testing.T) {
		f := newCoordinatorFixture(t)

		group, err := f.coordinator.CreateGroup(context.Background(), makeChunk(30), "embed-v1", 30)
		require.NoError(t, err)

		assert.False(t, group.IsSplit())
		assert.Equal(t, 1, group.JobCount())
	})

	t.Run("should split over-limit collections preserving the item sum", func(t *testing.T) {
		testCases := []struct {
			items     int
			wantJobs  int
			wantSizes []int
		}{
			{31, 2, []int{30, 1}},
			{60, 2, []int{30, 30}},
			{95, 4, []int{30, 30, 30, 5}},
		}
		for _, tc := range testCases {
			t.Run(fmt.Sprintf("%d items", tc.items), func(t *testing.T) {
				f := newCoordinatorFixture(t)

				group, err := f.coordinator.CreateGroup(context.Background(), makeChunk(tc.items), "embed-v1", 30)
				require.NoError(t, err)

				assert.True(t, group.IsSplit())
				assert.Equal(t, tc.wantJobs, group.JobCount())

				jobs := f.currentJobs(t, group.ID())
				require.Len(t, jobs, tc.wantJobs)

				total := 0
				for _, job := range jobs {
					idx := job.ChunkIndex()
					assert.Equal(t, tc.wantSizes[idx], job.ItemCount())
					assert.Equal(t, valueobject.JobStatusSubmitted, job.Status())
					total += job.ItemCount()
				}
				assert.Equal(t, tc.items, total)
			})
		}
	})

	t.Run("should reject an empty collection", func(t *testing.T) {
		f := newCoordinatorFixture(t)

		_, err := f.coordinator.CreateGroup(context.Background(), nil, "embed-v1", 30)
		require.Error(t, err)

		var domainErr *entity.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "EMPTY_GROUP", domainErr.Code())
	})

	t.Run("should record a failed submission and keep submitting the rest", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		var calls atomic.Int32
		f.provider.SubmitFunc = func(_ context.Context, requests []outbound.ProviderRequest) (string, error) {
			if calls.Add(1) == 2 {
				return "", errors.New("provider rejected chunk")
			}
			return fmt.Sprintf("remote-%d", calls.Load()), nil
		}

		group, err := f.coordinator.CreateGroup(context.Background(), makeChunk(90), "embed-v1", 30)
		require.NoError(t, err)

		jobs := f.currentJobs(t, group.ID())
		require.Len(t, jobs, 3)

		failed := 0
		for _, job := range jobs {
			if job.Status() == valueobject.JobStatusFailed {
				failed++
				require.NotNil(t, job.ErrorMessage())
			} else {
				assert.Equal(t, valueobject.JobStatusSubmitted, job.Status())
			}
		}
		assert.Equal(t, 1, failed)

		report, err := f.coordinator.GetGroupStatus(context.Background(), group.ID())
		require.NoError(t, err)
		assert.Equal(t, valueobject.GroupStatusPartial, report.Status)
		assert.Equal(t, 1, report.FailedBatches)
	})

	t.Run("should publish a group created event", func(t *testing.T) {
		f := newCoordinatorFixture(t)

		group, err := f.coordinator.CreateGroup(context.Background(), makeChunk(5), "embed-v1", 30)
		require.NoError(t, err)

		created := f.events.EventsOfKind(outbound.EventGroupCreated)
		require.Len(t, created, 1)
		assert.Equal(t, group.ID(), created[0].GroupID)
		assert.Equal(t, 5, created[0].ItemCount)
	})
}

func TestGroupCoordinatorRefreshGroup(t *testing.T) {
	t.Run("should refresh every non-terminal job", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		group, err := f.coordinator.CreateGroup(context.Background(), makeChunk(60), "embed-v1", 30)
		require.NoError(t, err)

		f.provider.PollFunc = func(context.Context, string) (outbound.ProviderStatus, error) {
			return outbound.ProviderStatus{Status: "in_progress", CompletedCount: 10}, nil
		}

		report, err := f.coordinator.RefreshGroup(context.Background(), group.ID())
		require.NoError(t, err)

		assert.Equal(t, valueobject.GroupStatusSubmitted, report.Status)
		require.Len(t, report.Jobs, 2)
		for _, summary := range report.Jobs {
			assert.Equal(t, valueobject.JobStatusInProgress, summary.Status)
			assert.Equal(t, 10, summary.CompletedCount)
		}
	})

	t.Run("should contain a poll failure to the failing job", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		group, err := f.coordinator.CreateGroup(context.Background(), makeChunk(90), "embed-v1", 30)
		require.NoError(t, err)

		jobs := f.currentJobs(t, group.ID())
		badRemote := *jobs[1].RemoteID()

		f.provider.PollFunc = func(_ context.Context, remoteID string) (outbound.ProviderStatus, error) {
			if remoteID == badRemote {
				return outbound.ProviderStatus{}, errors.New("connection reset")
			}
			return outbound.ProviderStatus{Status: "completed"}, nil
		}

		report, err := f.coordinator.RefreshGroup(context.Background(), group.ID())
		require.NoError(t, err)

		assert.Equal(t, valueobject.GroupStatusPartial, report.Status)
		assert.Equal(t, 2, report.CompletedBatches)

		var failing *JobStatusSummary
		for i := range report.Jobs {
			if report.Jobs[i].JobID == jobs[1].ID() {
				failing = &report.Jobs[i]
			}
		}
		require.NotNil(t, failing)
		assert.Equal(t, valueobject.JobStatusSubmitted, failing.Status)
		assert.Contains(t, failing.Error, "connection reset")
	})

	t.Run("should submit member jobs still in created after a restart", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		group, job := f.seedCreatedJob(t, 10)

		report, err := f.coordinator.RefreshGroup(context.Background(), group.ID())
		require.NoError(t, err)

		assert.Equal(t, 1, f.provider.SubmitCalls())

		stored, err := f.store.GetJob(context.Background(), job.ID())
		require.NoError(t, err)
		assert.Equal(t, valueobject.JobStatusSubmitted, stored.Status())
		require.NotNil(t, stored.RemoteID())
		assert.Equal(t, valueobject.GroupStatusSubmitted, report.Status)
	})

	t.Run("should record a failed recovery submission on the job", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		group, job := f.seedCreatedJob(t, 10)

		f.provider.SubmitFunc = func(context.Context, []outbound.ProviderRequest) (string, error) {
			return "", errors.New("service unavailable")
		}

		report, err := f.coordinator.RefreshGroup(context.Background(), group.ID())
		require.NoError(t, err)

		stored, err := f.store.GetJob(context.Background(), job.ID())
		require.NoError(t, err)
		assert.Equal(t, valueobject.JobStatusFailed, stored.Status())

		assert.Equal(t, valueobject.GroupStatusFailed, report.Status)
		require.Len(t, report.Jobs, 1)
		assert.Contains(t, report.Jobs[0].Error, "service unavailable")
	})

	t.Run("should stop when the context is cancelled", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		group, err := f.coordinator.CreateGroup(context.Background(), makeChunk(60), "embed-v1", 30)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = f.coordinator.RefreshGroup(ctx, group.ID())
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("should fail on an unknown group", func(t *testing.T) {
		f := newCoordinatorFixture(t)

		_, err := f.coordinator.RefreshGroup(context.Background(), uuid.New())
		require.Error(t, err)

		var domainErr *entity.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "GROUP_NOT_FOUND", domainErr.Code())
	})
}

func TestGroupCoordinatorGetGroupStatus(t *testing.T) {
	t.Run("should report from stored state without provider calls", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		group, err := f.coordinator.CreateGroup(context.Background(), makeChunk(60), "embed-v1", 30)
		require.NoError(t, err)
		polls := f.provider.PollCalls()

		report, err := f.coordinator.GetGroupStatus(context.Background(), group.ID())
		require.NoError(t, err)

		assert.Equal(t, polls, f.provider.PollCalls())
		assert.Equal(t, valueobject.GroupStatusSubmitted, report.Status)
		assert.Equal(t, 2, report.TotalBatches)
		assert.Equal(t, 60, report.TotalItems)
		assert.True(t, report.IsSplit)
	})
}

func TestGroupCoordinatorCollectGroup(t *testing.T) {
	t.Run("should merge per-item results across completed jobs", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		group, err := f.coordinator.CreateGroup(context.Background(), makeChunk(65), "embed-v1", 30)
		require.NoError(t, err)
		f.completeAllJobs(t, group.ID())

		result, err := f.coordinator.CollectGroup(context.Background(), group.ID())
		require.NoError(t, err)

		assert.Equal(t, valueobject.GroupStatusCompleted, result.Status)
		assert.Len(t, result.Results, 65)
		assert.Empty(t, result.PendingJobs)
		assert.Empty(t, result.FailedJobs)
		assert.Empty(t, result.JobErrors)
	})

	t.Run("should be idempotent without extra provider downloads", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		group, err := f.coordinator.CreateGroup(context.Background(), makeChunk(60), "embed-v1", 30)
		require.NoError(t, err)
		f.completeAllJobs(t, group.ID())

		first, err := f.coordinator.CollectGroup(context.Background(), group.ID())
		require.NoError(t, err)
		downloads := f.provider.DownloadCalls()

		second, err := f.coordinator.CollectGroup(context.Background(), group.ID())
		require.NoError(t, err)

		assert.Equal(t, downloads, f.provider.DownloadCalls())
		assert.Equal(t, first.Results, second.Results)
	})

	t.Run("should report pending and failed jobs alongside partial results", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		group, err := f.coordinator.CreateGroup(context.Background(), makeChunk(90), "embed-v1", 30)
		require.NoError(t, err)

		jobs := f.currentJobs(t, group.ID())
		completedRemote := *jobs[0].RemoteID()
		failedRemote := *jobs[1].RemoteID()

		f.provider.PollFunc = func(_ context.Context, remoteID string) (outbound.ProviderStatus, error) {
			switch remoteID {
			case completedRemote:
				return outbound.ProviderStatus{Status: "completed", CompletedCount: 30}, nil
			case failedRemote:
				return outbound.ProviderStatus{Status: "failed", FailedCount: 30}, nil
			default:
				return outbound.ProviderStatus{Status: "in_progress"}, nil
			}
		}
		_, err = f.coordinator.RefreshGroup(context.Background(), group.ID())
		require.NoError(t, err)

		result, err := f.coordinator.CollectGroup(context.Background(), group.ID())
		require.NoError(t, err)

		assert.Equal(t, valueobject.GroupStatusPartial, result.Status)
		assert.Len(t, result.Results, 30)
		assert.Equal(t, []uuid.UUID{jobs[1].ID()}, result.FailedJobs)
		assert.Equal(t, []uuid.UUID{jobs[2].ID()}, result.PendingJobs)
	})
}

func TestGroupCoordinatorRetryFailed(t *testing.T) {
	// failSecondChunk drives a three-job group to completed/failed/completed.
	failSecondChunk := func(t *testing.T, f *coordinatorFixture, groupID uuid.UUID) []*entity.BatchJob {
		t.Helper()
		jobs := f.currentJobs(t, groupID)
		failedRemote := *jobs[1].RemoteID()

		f.provider.PollFunc = func(_ context.Context, remoteID string) (outbound.ProviderStatus, error) {
			if remoteID == failedRemote {
				return outbound.ProviderStatus{Status: "failed"}, nil
			}
			return outbound.ProviderStatus{Status: "completed"}, nil
		}
		_, err := f.coordinator.RefreshGroup(context.Background(), groupID)
		require.NoError(t, err)
		f.provider.PollFunc = nil
		return jobs
	}

	t.Run("should replace only failed jobs with fresh submissions of the same chunk", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		group, err := f.coordinator.CreateGroup(context.Background(), makeChunk(90), "embed-v1", 30)
		require.NoError(t, err)
		before := failSecondChunk(t, f, group.ID())

		updated, err := f.coordinator.RetryFailed(context.Background(), group.ID())
		require.NoError(t, err)

		after := f.currentJobs(t, group.ID())

		byChunk := make(map[int]*entity.BatchJob, len(after))
		total := 0
		for _, job := range after {
			byChunk[job.ChunkIndex()] = job
			total += job.ItemCount()
		}
		assert.Equal(t, 90, total)

		// untouched jobs keep their identity
		assert.Equal(t, before[0].ID(), byChunk[0].ID())
		assert.Equal(t, before[2].ID(), byChunk[2].ID())

		// the failed job was replaced, resubmitted, and carries the same chunk
		replacement := byChunk[1]
		assert.NotEqual(t, before[1].ID(), replacement.ID())
		assert.Equal(t, valueobject.JobStatusSubmitted, replacement.Status())
		assert.Equal(t, before[1].Chunk(), replacement.Chunk())
		assert.Equal(t, -1, updated.JobIndex(before[1].ID()))
		assert.Equal(t, 1, updated.JobIndex(replacement.ID()))

		replaced := f.events.EventsOfKind(outbound.EventJobReplaced)
		require.Len(t, replaced, 1)
		assert.Equal(t, before[1].ID(), replaced[0].ReplacedID)
		assert.Equal(t, replacement.ID(), replaced[0].JobID)
	})

	t.Run("should be a no-op when nothing failed", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		group, err := f.coordinator.CreateGroup(context.Background(), makeChunk(60), "embed-v1", 30)
		require.NoError(t, err)

		before := group.JobIDs()
		updated, err := f.coordinator.RetryFailed(context.Background(), group.ID())
		require.NoError(t, err)
		assert.Equal(t, before, updated.JobIDs())
	})

	t.Run("should record a replacement whose resubmission also fails", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		group, err := f.coordinator.CreateGroup(context.Background(), makeChunk(90), "embed-v1", 30)
		require.NoError(t, err)
		failSecondChunk(t, f, group.ID())

		f.provider.SubmitFunc = func(context.Context, []outbound.ProviderRequest) (string, error) {
			return "", errors.New("still rejecting")
		}

		updated, err := f.coordinator.RetryFailed(context.Background(), group.ID())
		require.NoError(t, err)

		jobs := f.currentJobs(t, group.ID())
		var replacement *entity.BatchJob
		for _, job := range jobs {
			if job.ChunkIndex() == 1 {
				replacement = job
			}
		}
		require.NotNil(t, replacement)
		assert.Equal(t, valueobject.JobStatusFailed, replacement.Status())
		assert.Equal(t, 1, updated.JobIndex(replacement.ID()))
	})
}

func TestGroupCoordinatorCancelGroup(t *testing.T) {
	t.Run("should cancel all in-flight jobs", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		group, err := f.coordinator.CreateGroup(context.Background(), makeChunk(60), "embed-v1", 30)
		require.NoError(t, err)

		report, err := f.coordinator.CancelGroup(context.Background(), group.ID())
		require.NoError(t, err)

		assert.Equal(t, valueobject.GroupStatusCancelled, report.Status)
		for _, summary := range report.Jobs {
			assert.Equal(t, valueobject.JobStatusCancelled, summary.Status)
		}
	})

	t.Run("should leave completed jobs untouched", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		group, err := f.coordinator.CreateGroup(context.Background(), makeChunk(60), "embed-v1", 30)
		require.NoError(t, err)

		jobs := f.currentJobs(t, group.ID())
		completedRemote := *jobs[0].RemoteID()

		f.provider.PollFunc = func(_ context.Context, remoteID string) (outbound.ProviderStatus, error) {
			if remoteID == completedRemote {
				return outbound.ProviderStatus{Status: "completed", CompletedCount: 30}, nil
			}
			return outbound.ProviderStatus{Status: "in_progress"}, nil
		}
		_, err = f.coordinator.RefreshGroup(context.Background(), group.ID())
		require.NoError(t, err)

		report, err := f.coordinator.CancelGroup(context.Background(), group.ID())
		require.NoError(t, err)

		assert.Equal(t, valueobject.GroupStatusPartialFailure, report.Status)
		assert.Equal(t, 1, report.CompletedBatches)
	})
}

func TestGroupCoordinatorListActiveGroups(t *testing.T) {
	f := newCoordinatorFixture(t)

	active, err := f.coordinator.CreateGroup(context.Background(), makeChunk(10), "embed-v1", 30)
	require.NoError(t, err)
	finished, err := f.coordinator.CreateGroup(context.Background(), makeChunk(10), "embed-v1", 30)
	require.NoError(t, err)
	f.completeAllJobs(t, finished.ID())

	groups, err := f.coordinator.ListActiveGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, active.ID(), groups[0].ID())
}

func TestGroupCoordinatorGroupJobHistory(t *testing.T) {
	t.Run("should include jobs replaced by retries", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		group, err := f.coordinator.CreateGroup(context.Background(), makeChunk(10), "embed-v1", 30)
		require.NoError(t, err)

		f.provider.PollFunc = func(context.Context, string) (outbound.ProviderStatus, error) {
			return outbound.ProviderStatus{Status: "failed"}, nil
		}
		_, err = f.coordinator.RefreshGroup(context.Background(), group.ID())
		require.NoError(t, err)
		f.provider.PollFunc = nil

		updated, err := f.coordinator.RetryFailed(context.Background(), group.ID())
		require.NoError(t, err)

		history, err := f.coordinator.GroupJobHistory(context.Background(), group.ID())
		require.NoError(t, err)
		require.Len(t, history, 2)

		assert.Equal(t, valueobject.JobStatusFailed, history[0].Status)
		assert.Equal(t, valueobject.JobStatusSubmitted, history[1].Status)
		assert.Equal(t, updated.JobIDs()[0], history[1].JobID)
		assert.Equal(t, -1, updated.JobIndex(history[0].JobID))
	})

	t.Run("should fail on an unknown group", func(t *testing.T) {
		f := newCoordinatorFixture(t)

		_, err := f.coordinator.GroupJobHistory(context.Background(), uuid.New())
		require.Error(t, err)

		var domainErr *entity.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "GROUP_NOT_FOUND", domainErr.Code())
	})
}
