package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/driftline-labs/driftline/internal/core/domain"
	"github.com/driftline-labs/driftline/internal/core/ports/driven"
	"github.com/driftline-labs/driftline/internal/core/ports/driving"
	"github.com/driftline-labs/driftline/internal/logger"
	"github.com/driftline-labs/driftline/internal/ratelimit"
)

// Ensure ConnectorSession implements the interface.
var _ driving.ConnectorService = (*ConnectorSession)(nil)

// ConnectorSession owns the state of one connector instance: status,
// cumulative stats, the sync cursor and the last error. State is
// mutated only through command methods under a single lock; external
// readers get snapshots. A session that has been disconnected discards
// late-arriving results instead of writing them back.
type ConnectorSession struct {
	adapter    driven.SourceAdapter
	pipeline   driven.IngestionPipeline
	stateStore driven.SyncStateStore
	settings   domain.ConnectorSettings
	limiter    *ratelimit.Limiter
	discovery  *DiscoveryEngine
	ingestor   *BatchIngestor
	onProgress driving.ProgressFunc

	mu         sync.Mutex
	status     domain.ConnectorStatus
	stats      domain.ConnectorStats
	cursor     time.Time
	lastError  string
	active     bool
	registered bool
	inFlight   bool
}

// SessionOption configures a ConnectorSession.
type SessionOption func(*ConnectorSession)

// WithProgressFunc registers a callback invoked after each batch.
func WithProgressFunc(fn driving.ProgressFunc) SessionOption {
	return func(s *ConnectorSession) {
		s.onProgress = fn
	}
}

// NewConnectorSession creates a session for one adapter/pipeline pair.
// The rate limiter is shared across all calls the session issues.
func NewConnectorSession(
	adapter driven.SourceAdapter,
	pipeline driven.IngestionPipeline,
	stateStore driven.SyncStateStore,
	settings domain.ConnectorSettings,
	opts ...SessionOption,
) (*ConnectorSession, error) {
	settings = settings.Normalised()

	filter, err := domain.NewItemFilter(settings)
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}

	// Smooth calls to the window's steady rate so a burst cannot burn
	// the whole budget in its first seconds.
	callsPerSecond := float64(settings.CallsPerWindow) / settings.WindowDuration.Seconds()
	limiter := ratelimit.New(settings.CallsPerWindow, settings.WindowDuration,
		ratelimit.WithProactiveRate(callsPerSecond))

	s := &ConnectorSession{
		adapter:    adapter,
		pipeline:   pipeline,
		stateStore: stateStore,
		settings:   settings,
		limiter:    limiter,
		discovery:  NewDiscoveryEngine(adapter, limiter, filter),
		ingestor:   NewBatchIngestor(adapter, pipeline, limiter, settings),
		status:     domain.StatusUnregistered,
		active:     true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Settings returns the session's normalised settings.
func (s *ConnectorSession) Settings() domain.ConnectorSettings {
	return s.settings
}

// Register upserts the source with the pipeline. A registration
// failure records the error and leaves the session unconnected; a new
// attempt must be triggered explicitly by the caller.
func (s *ConnectorSession) Register(ctx context.Context) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	s.status = domain.StatusRegistering
	s.mu.Unlock()

	if s.adapter.Capabilities().SupportsValidation {
		if err := s.adapter.Validate(ctx); err != nil {
			s.recordFailure(fmt.Errorf("validate adapter: %w", err))
			return err
		}
	}

	descriptor := driven.DataSourceDescriptor{
		SourceID:   s.adapter.SourceID(),
		SourceType: s.adapter.SourceType(),
		DisplayName: fmt.Sprintf("%s (%s)",
			s.adapter.SourceID(), s.adapter.SourceType()),
	}
	if err := s.pipeline.RegisterDataSource(ctx, descriptor); err != nil {
		s.recordFailure(fmt.Errorf("register data source: %w", err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return domain.ErrSessionClosed
	}
	s.status = domain.StatusConnected
	s.registered = true
	s.lastError = ""
	logger.Info("Registered source %s", s.adapter.SourceID())
	return nil
}

// RunIngestCycle runs the coarse ingest cycle: a full discover+ingest,
// or the incremental sync logic when the session is configured for
// incremental sync.
func (s *ConnectorSession) RunIngestCycle(ctx context.Context) error {
	return s.runCycle(ctx, !s.settings.IncrementalSync)
}

// RunSyncCycle runs the fine sync cycle: always incremental.
func (s *ConnectorSession) RunSyncCycle(ctx context.Context) error {
	return s.runCycle(ctx, false)
}

// runCycle executes one discovery+ingest cycle. Cycles are
// single-flight: a second trigger while one is running returns
// domain.ErrCycleInProgress instead of racing on stats.
func (s *ConnectorSession) runCycle(ctx context.Context, fullScan bool) error {
	if err := s.beginCycle(); err != nil {
		return err
	}
	defer s.endCycle()

	cycleStart := time.Now()
	since := s.loadCursor(ctx)

	s.setStatus(domain.StatusDiscovering)
	items, err := s.discovery.Discover(ctx, fullScan, since)
	if err != nil {
		// The cycle's partial item list is discarded; stats from prior
		// cycles are preserved.
		s.recordFailure(fmt.Errorf("discovery: %w", err))
		return err
	}

	s.beginIngestion(len(items))
	result, err := s.ingestor.Ingest(ctx, items, s.applyProgress)
	if err != nil {
		s.recordFailure(fmt.Errorf("ingest: %w", err))
		return err
	}

	if err := s.advanceCursor(ctx, cycleStart); err != nil {
		s.recordFailure(err)
		return err
	}

	s.setStatus(domain.StatusCompleted)
	logger.Info("Cycle complete for %s: %d ingested, %d failed",
		s.adapter.SourceID(), result.SuccessCount, result.FailCount)
	return nil
}

// Snapshot returns a read-only copy of the connector state.
func (s *ConnectorSession) Snapshot() domain.ConnectorSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ConnectorSnapshot{
		SourceID:     s.adapter.SourceID(),
		Status:       s.status,
		Stats:        s.stats,
		LastSyncTime: s.cursor,
		LastError:    s.lastError,
	}
}

// Disconnect tears the session down. In-flight cycles are not forcibly
// aborted; their late results are discarded by the active check.
func (s *ConnectorSession) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	s.status = domain.StatusDisconnected
}

// beginCycle takes the single-flight guard.
func (s *ConnectorSession) beginCycle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.active:
		return domain.ErrSessionClosed
	case !s.registered:
		return domain.ErrNotRegistered
	case s.inFlight:
		return domain.ErrCycleInProgress
	}
	s.inFlight = true
	return nil
}

// setStatus updates the lifecycle status unless the session has been
// disconnected.
func (s *ConnectorSession) setStatus(status domain.ConnectorStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.status = status
}

func (s *ConnectorSession) endCycle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
}

// beginIngestion starts a fresh stats window for the cycle. Stats are
// reset here, after discovery has succeeded, so a failed discovery
// preserves the previous cycle's counters.
func (s *ConnectorSession) beginIngestion(discovered int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.stats = domain.ConnectorStats{TotalDiscovered: discovered}
	s.status = domain.StatusIngesting
}

// applyProgress folds cumulative batch progress into the session stats
// under the single-writer lock, then forwards it to the caller's
// progress callback. Counters never decrease.
func (s *ConnectorSession) applyProgress(p driving.Progress) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	if p.SuccessCount > s.stats.IngestedCount {
		s.stats.IngestedCount = p.SuccessCount
	}
	if p.FailCount > s.stats.FailedCount {
		s.stats.FailedCount = p.FailCount
	}
	onProgress := s.onProgress
	s.mu.Unlock()

	if onProgress != nil {
		onProgress(p)
	}
}

// loadCursor returns the incremental sync bound: the persisted state
// when available, the in-memory cursor otherwise.
func (s *ConnectorSession) loadCursor(ctx context.Context) time.Time {
	if s.stateStore != nil {
		state, err := s.stateStore.Get(ctx, s.adapter.SourceID())
		if err == nil {
			return state.LastSyncTime
		}
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Load sync state for %s: %v", s.adapter.SourceID(), err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// advanceCursor moves the cursor forward to the cycle start time and
// persists it. The cursor never moves backward.
func (s *ConnectorSession) advanceCursor(ctx context.Context, cycleStart time.Time) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if cycleStart.After(s.cursor) {
		s.cursor = cycleStart
	}
	cursor := s.cursor
	s.mu.Unlock()

	if s.stateStore == nil {
		return nil
	}
	state := domain.SyncState{
		SourceID:     s.adapter.SourceID(),
		LastSyncTime: cursor,
		LastSync:     time.Now(),
	}
	if err := s.stateStore.Save(ctx, state); err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}

// recordFailure records the error and flips the status. Auth failures
// disconnect the session; there is no automatic retry.
func (s *ConnectorSession) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.lastError = err.Error()
	if domain.IsAuthError(err) {
		s.status = domain.StatusDisconnected
		s.active = false
		return
	}
	s.status = domain.StatusFailed
}
