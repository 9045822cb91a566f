package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline-labs/driftline/internal/core/domain"
)

func TestSyncStateRoundTrip(t *testing.T) {
	store := NewSyncStateStore()
	ctx := context.Background()

	cursor := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, domain.SyncState{SourceID: "src-1", LastSyncTime: cursor}))

	got, err := store.Get(ctx, "src-1")
	require.NoError(t, err)
	assert.True(t, got.LastSyncTime.Equal(cursor))

	// The returned state is a copy.
	got.LastSyncTime = cursor.Add(time.Hour)
	again, err := store.Get(ctx, "src-1")
	require.NoError(t, err)
	assert.True(t, again.LastSyncTime.Equal(cursor))
}

func TestSyncStateMissingAndDelete(t *testing.T) {
	store := NewSyncStateStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.Save(ctx, domain.SyncState{SourceID: "src-1"}))
	require.NoError(t, store.Delete(ctx, "src-1"))

	_, err = store.Get(ctx, "src-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSyncStateSaveRejectsEmptySourceID(t *testing.T) {
	store := NewSyncStateStore()
	err := store.Save(context.Background(), domain.SyncState{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSchedulerStoreTaskLifecycle(t *testing.T) {
	store := NewSchedulerStore()
	ctx := context.Background()

	task, err := store.GetTask(ctx, domain.TaskIDSync)
	require.NoError(t, err)
	assert.Nil(t, task)

	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID: domain.TaskIDSync, SourceID: "src-1", Interval: 5 * time.Minute, Enabled: true,
	}))
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID: domain.TaskIDIngest, SourceID: "src-1", Interval: time.Hour, Enabled: true,
	}))

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, domain.TaskIDIngest, tasks[0].ID)
	assert.Equal(t, domain.TaskIDSync, tasks[1].ID)

	require.NoError(t, store.DeleteTask(ctx, domain.TaskIDIngest))
	tasks, err = store.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestSchedulerStoreHistory(t *testing.T) {
	store := NewSchedulerStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordResult(ctx, &domain.TaskResult{
			TaskID: domain.TaskIDSync, SourceID: "src-1", ItemsProcessed: i,
		}))
	}

	history, err := store.GetTaskHistory(ctx, domain.TaskIDSync, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 4, history[0].ItemsProcessed)
	assert.Equal(t, 2, history[2].ItemsProcessed)
}

func TestSchedulerStorePruneKeepsNewestPerTask(t *testing.T) {
	store := NewSchedulerStore()
	ctx := context.Background()

	for _, taskID := range []string{domain.TaskIDIngest, domain.TaskIDSync} {
		for i := 0; i < 4; i++ {
			require.NoError(t, store.RecordResult(ctx, &domain.TaskResult{
				TaskID: taskID, SourceID: "src-1", ItemsProcessed: i,
			}))
		}
	}

	require.NoError(t, store.PruneHistory(ctx, 2))

	for _, taskID := range []string{domain.TaskIDIngest, domain.TaskIDSync} {
		history, err := store.GetTaskHistory(ctx, taskID, 10)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, 3, history[0].ItemsProcessed)
		assert.Equal(t, 2, history[1].ItemsProcessed)
	}
}
