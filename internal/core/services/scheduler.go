package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/driftline-labs/driftline/internal/core/domain"
	"github.com/driftline-labs/driftline/internal/core/ports/driven"
	"github.com/driftline-labs/driftline/internal/core/ports/driving"
	"github.com/driftline-labs/driftline/internal/logger"
)

// historyRetention is how many task results are kept per task.
const historyRetention = 100

// Scheduler drives a connector's two periodic tasks: the coarse
// ingest task and the fine sync task. The tasks tick independently;
// the session's single-flight guard keeps their cycles from racing,
// and a firing that finds a cycle already running is skipped with a
// warning. Stop atomically invalidates both tasks.
type Scheduler struct {
	service  driving.ConnectorService
	store    driven.SchedulerStore
	settings domain.ConnectorSettings
	sourceID string

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler for one connector service. The
// store is optional; when nil, task state and history are not
// persisted.
func NewScheduler(service driving.ConnectorService, store driven.SchedulerStore, settings domain.ConnectorSettings) *Scheduler {
	return &Scheduler{
		service:  service,
		store:    store,
		settings: settings.Normalised(),
		sourceID: service.Snapshot().SourceID,
	}
}

// Start launches the periodic tasks. It returns immediately; call
// Stop to cancel both tasks and wait for in-flight runs to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("Scheduler: failed to initialise tasks: %v", err)
	}

	if s.settings.AutoIngest {
		s.launch(ctx, stopCh, domain.TaskIDIngest, s.settings.IngestInterval, s.service.RunIngestCycle)
	}
	s.launch(ctx, stopCh, domain.TaskIDSync, s.settings.SyncInterval, s.service.RunSyncCycle)

	return nil
}

// Stop cancels both tasks and waits for running cycles to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

// launch starts the ticker loop for one task.
func (s *Scheduler) launch(ctx context.Context, stopCh <-chan struct{}, taskID string, interval time.Duration, run func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.C:
				s.execute(ctx, taskID, interval, run)
			}
		}
	}()
}

// execute runs one firing of a task and records the outcome.
func (s *Scheduler) execute(ctx context.Context, taskID string, interval time.Duration, run func(context.Context) error) {
	result := &domain.TaskResult{
		TaskID:    taskID,
		SourceID:  s.sourceID,
		StartedAt: time.Now(),
	}

	err := run(ctx)
	result.EndedAt = time.Now()

	switch {
	case errors.Is(err, domain.ErrCycleInProgress):
		// Another cycle holds the single-flight guard; skip this
		// firing and wait for the next tick.
		logger.Warn("Task %s for %s skipped: cycle already running", taskID, s.sourceID)
		result.Skipped = true
	case err != nil:
		result.Error = err.Error()
	default:
		result.Success = true
		result.ItemsProcessed = s.service.Snapshot().Stats.IngestedCount
	}

	s.recordRun(ctx, taskID, interval, result)
}

// initialiseTasks ensures both tasks exist in the store.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	tasks := []struct {
		id       string
		name     string
		interval time.Duration
		enabled  bool
	}{
		{domain.TaskIDIngest, "Ingest", s.settings.IngestInterval, s.settings.AutoIngest},
		{domain.TaskIDSync, "Incremental Sync", s.settings.SyncInterval, true},
	}

	for _, t := range tasks {
		if err := s.ensureTask(ctx, t.id, t.name, t.interval, t.enabled); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, interval time.Duration, enabled bool) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		task = &domain.ScheduledTask{
			ID:       id,
			SourceID: s.sourceID,
			Name:     name,
			Interval: interval,
			NextRun:  time.Now().Add(interval),
		}
	} else if task.Interval != interval {
		task.Interval = interval
		task.NextRun = time.Now().Add(interval)
	}
	task.Enabled = enabled

	return s.store.SaveTask(ctx, task)
}

// recordRun persists the task state and result history.
func (s *Scheduler) recordRun(ctx context.Context, taskID string, interval time.Duration, result *domain.TaskResult) {
	if s.store == nil {
		return
	}

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil || task == nil {
		logger.Warn("Scheduler: failed to load task %s: %v", taskID, err)
		return
	}

	task.LastRun = result.StartedAt
	task.NextRun = result.EndedAt.Add(interval)
	if result.Success {
		task.LastError = ""
		task.LastSuccess = result.EndedAt
	} else if result.Error != "" {
		task.LastError = result.Error
	}

	if err := s.store.SaveTask(ctx, task); err != nil {
		logger.Warn("Scheduler: failed to save task %s: %v", taskID, err)
	}
	if err := s.store.RecordResult(ctx, result); err != nil {
		logger.Warn("Scheduler: failed to record result for %s: %v", taskID, err)
	}
	if err := s.store.PruneHistory(ctx, historyRetention); err != nil {
		logger.Warn("Scheduler: failed to prune history: %v", err)
	}
}
