package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline-labs/driftline/internal/adapters/driven/storage/memory"
	"github.com/driftline-labs/driftline/internal/core/domain"
	"github.com/driftline-labs/driftline/internal/core/ports/driving"
)

// fakeService implements driving.ConnectorService and counts cycle
// invocations.
type fakeService struct {
	mu          sync.Mutex
	ingestRuns  int
	syncRuns    int
	ingestErr   error
	syncErr     error
	disconnects int
}

var _ driving.ConnectorService = (*fakeService)(nil)

func (s *fakeService) Register(_ context.Context) error { return nil }

func (s *fakeService) RunIngestCycle(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingestRuns++
	return s.ingestErr
}

func (s *fakeService) RunSyncCycle(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncRuns++
	return s.syncErr
}

func (s *fakeService) Snapshot() domain.ConnectorSnapshot {
	return domain.ConnectorSnapshot{SourceID: "src-1", Status: domain.StatusConnected}
}

func (s *fakeService) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
}

func (s *fakeService) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingestRuns, s.syncRuns
}

func schedulerSettings() domain.ConnectorSettings {
	s := testSettings()
	s.IngestInterval = 20 * time.Millisecond
	s.SyncInterval = 10 * time.Millisecond
	return s
}

func TestSchedulerRunsBothTasks(t *testing.T) {
	service := &fakeService{}
	store := memory.NewSchedulerStore()
	scheduler := NewScheduler(service, store, schedulerSettings())

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(120 * time.Millisecond)
	scheduler.Stop()

	ingestRuns, syncRuns := service.counts()
	assert.Greater(t, ingestRuns, 0)
	assert.Greater(t, syncRuns, 0)

	// Both tasks were initialised in the store.
	tasks, err := store.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, domain.TaskIDIngest, tasks[0].ID)
	assert.Equal(t, domain.TaskIDSync, tasks[1].ID)
}

func TestSchedulerStopCancelsBothTasks(t *testing.T) {
	service := &fakeService{}
	scheduler := NewScheduler(service, memory.NewSchedulerStore(), schedulerSettings())

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	scheduler.Stop()

	ingestAfterStop, syncAfterStop := service.counts()
	time.Sleep(60 * time.Millisecond)

	ingestLater, syncLater := service.counts()
	assert.Equal(t, ingestAfterStop, ingestLater)
	assert.Equal(t, syncAfterStop, syncLater)

	// Stop is idempotent.
	scheduler.Stop()
}

func TestSchedulerHonoursAutoIngestOff(t *testing.T) {
	service := &fakeService{}
	settings := schedulerSettings()
	settings.AutoIngest = false
	scheduler := NewScheduler(service, memory.NewSchedulerStore(), settings)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(80 * time.Millisecond)
	scheduler.Stop()

	ingestRuns, syncRuns := service.counts()
	assert.Zero(t, ingestRuns)
	assert.Greater(t, syncRuns, 0)
}

func TestSchedulerRecordsResults(t *testing.T) {
	service := &fakeService{}
	store := memory.NewSchedulerStore()
	scheduler := NewScheduler(service, store, schedulerSettings())

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(60 * time.Millisecond)
	scheduler.Stop()

	history, err := store.GetTaskHistory(context.Background(), domain.TaskIDSync, 10)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.True(t, history[0].Success)
	assert.Equal(t, "src-1", history[0].SourceID)

	task, err := store.GetTask(context.Background(), domain.TaskIDSync)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.False(t, task.LastRun.IsZero())
	assert.False(t, task.LastSuccess.IsZero())
}

func TestSchedulerSkipsWhenCycleInProgress(t *testing.T) {
	service := &fakeService{syncErr: domain.ErrCycleInProgress}
	store := memory.NewSchedulerStore()
	settings := schedulerSettings()
	settings.AutoIngest = false
	scheduler := NewScheduler(service, store, settings)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(60 * time.Millisecond)
	scheduler.Stop()

	history, err := store.GetTaskHistory(context.Background(), domain.TaskIDSync, 10)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	for _, result := range history {
		assert.True(t, result.Skipped)
		assert.False(t, result.Success)
		assert.Empty(t, result.Error)
	}

	// A skipped firing is not recorded as a task failure.
	task, err := store.GetTask(context.Background(), domain.TaskIDSync)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Empty(t, task.LastError)
}

func TestSchedulerRecordsTaskErrors(t *testing.T) {
	service := &fakeService{syncErr: assertError("remote down")}
	store := memory.NewSchedulerStore()
	settings := schedulerSettings()
	settings.AutoIngest = false
	scheduler := NewScheduler(service, store, settings)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(60 * time.Millisecond)
	scheduler.Stop()

	task, err := store.GetTask(context.Background(), domain.TaskIDSync)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "remote down", task.LastError)
}

func TestSchedulerStartIsIdempotent(t *testing.T) {
	service := &fakeService{}
	scheduler := NewScheduler(service, memory.NewSchedulerStore(), schedulerSettings())

	require.NoError(t, scheduler.Start(context.Background()))
	require.NoError(t, scheduler.Start(context.Background()))
	scheduler.Stop()
}

// assertError is a trivial error type for injection.
type assertError string

func (e assertError) Error() string { return string(e) }
