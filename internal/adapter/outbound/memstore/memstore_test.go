package memstore

import (
	"context"
	"fmt"
	"testing"

	"batchflow/internal/domain/entity"
	"batchflow/internal/domain/valueobject"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeJob(groupID uuid.UUID, chunkIndex, items int) *entity.BatchJob {
	chunk := make([]entity.WorkItem, 0, items)
	for i := 0; i < items; i++ {
		chunk = append(chunk, entity.WorkItem{
			Namespace:  "acme",
			Collection: "orders",
			ItemID:     fmt.Sprintf("%d-%d", chunkIndex, i),
			Processor:  "embed-v1",
			Payload:    `{}`,
		})
	}
	return entity.NewBatchJob(groupID, chunkIndex, chunk)
}

func TestStoreGroupRoundTrip(t *testing.T) {
	store := New()
	ctx := context.Background()

	group := entity.NewBatchGroup("embed-v1", 60, true)
	group.AddJob(uuid.New())
	group.AddJob(uuid.New())
	require.NoError(t, store.SaveGroup(ctx, group))

	loaded, err := store.GetGroup(ctx, group.ID())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, group.Equal(loaded))
	assert.Equal(t, group.JobIDs(), loaded.JobIDs())
	assert.Equal(t, group.TotalItems(), loaded.TotalItems())
}

func TestStoreJobRoundTrip(t *testing.T) {
	store := New()
	ctx := context.Background()

	job := makeJob(uuid.New(), 0, 3)
	require.NoError(t, job.MarkSubmitted("remote-1"))
	require.NoError(t, store.SaveJob(ctx, job))

	loaded, err := store.GetJob(ctx, job.ID())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, job.Equal(loaded))
	assert.Equal(t, valueobject.JobStatusSubmitted, loaded.Status())
	require.NotNil(t, loaded.RemoteID())
	assert.Equal(t, "remote-1", *loaded.RemoteID())
	assert.Equal(t, job.Chunk(), loaded.Chunk())
}

func TestStoreReturnsNilForUnknownIDs(t *testing.T) {
	store := New()
	ctx := context.Background()

	group, err := store.GetGroup(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, group)

	job, err := store.GetJob(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestStoreRejectsNil(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.Error(t, store.SaveGroup(ctx, nil))
	require.Error(t, store.SaveJob(ctx, nil))
}

func TestStoreIsolatesCallersFromStoredState(t *testing.T) {
	store := New()
	ctx := context.Background()

	job := makeJob(uuid.New(), 0, 1)
	require.NoError(t, store.SaveJob(ctx, job))

	// mutating the caller's copy after save must not affect the store
	require.NoError(t, job.MarkSubmitted("remote-1"))

	loaded, err := store.GetJob(ctx, job.ID())
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusCreated, loaded.Status())

	// and mutating a loaded copy must not affect later loads
	require.NoError(t, loaded.MarkSubmitted("remote-2"))
	again, err := store.GetJob(ctx, job.ID())
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusCreated, again.Status())
}

func TestStoreGetJobsByGroup(t *testing.T) {
	store := New()
	ctx := context.Background()
	groupID := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.SaveJob(ctx, makeJob(groupID, i, 2)))
	}
	require.NoError(t, store.SaveJob(ctx, makeJob(uuid.New(), 0, 2)))

	jobs, err := store.GetJobsByGroup(ctx, groupID)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	for _, job := range jobs {
		assert.Equal(t, groupID, job.GroupID())
	}
}

func TestStoreListActiveGroups(t *testing.T) {
	store := New()
	ctx := context.Background()

	// group with one running job
	active := entity.NewBatchGroup("embed-v1", 2, false)
	activeJob := makeJob(active.ID(), 0, 2)
	active.AddJob(activeJob.ID())
	require.NoError(t, store.SaveGroup(ctx, active))
	require.NoError(t, store.SaveJob(ctx, activeJob))

	// group whose only job is terminal
	done := entity.NewBatchGroup("embed-v1", 2, false)
	doneJob := makeJob(done.ID(), 0, 2)
	require.NoError(t, doneJob.MarkFailed("boom"))
	done.AddJob(doneJob.ID())
	require.NoError(t, store.SaveGroup(ctx, done))
	require.NoError(t, store.SaveJob(ctx, doneJob))

	groups, err := store.ListActiveGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, active.ID(), groups[0].ID())

	// finishing the running job retires the group
	require.NoError(t, activeJob.MarkCancelled())
	require.NoError(t, store.SaveJob(ctx, activeJob))

	groups, err = store.ListActiveGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)
}
