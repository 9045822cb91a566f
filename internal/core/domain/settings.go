package domain

import "time"

// Default connector settings.
const (
	// DefaultBatchSize is the default number of records per pipeline batch.
	DefaultBatchSize = 50

	// DefaultMaxConcurrentIngestions bounds per-item enrichment within a batch.
	DefaultMaxConcurrentIngestions = 4

	// DefaultIngestInterval is the default coarse ingest cycle interval.
	DefaultIngestInterval = 1 * time.Hour

	// DefaultSyncInterval is the default fine sync cycle interval.
	DefaultSyncInterval = 5 * time.Minute

	// DefaultMaxItemSizeBytes is the default size ceiling (10 MiB).
	DefaultMaxItemSizeBytes = 10 << 20

	// DefaultChunkSize is the default downstream chunk size in characters.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the default overlap between chunks.
	DefaultChunkOverlap = 200

	// DefaultCallsPerWindow is the default adapter call budget per window.
	DefaultCallsPerWindow = 5000

	// DefaultWindowDuration is the default rate limit window.
	DefaultWindowDuration = 1 * time.Hour
)

// ConnectorSettings is the complete configuration surface for one
// connector instance. The zero value is not usable directly; call
// Normalised to apply defaults.
type ConnectorSettings struct {
	// BatchSize caps the number of records per pipeline batch.
	BatchSize int

	// MaxConcurrentIngestions bounds concurrent per-item enrichment
	// within a single batch.
	MaxConcurrentIngestions int

	// IngestInterval is how often the coarse ingest task runs.
	IngestInterval time.Duration

	// SyncInterval is how often the fine sync task runs.
	SyncInterval time.Duration

	// IncrementalSync makes the ingest task delegate to incremental
	// sync logic instead of running a full scan.
	IncrementalSync bool

	// AutoIngest enables the periodic ingest task.
	AutoIngest bool

	// IncludeExtensions is the extension allow-list (e.g. ".md").
	// Empty means all extensions are allowed.
	IncludeExtensions []string

	// ExcludePatterns are glob patterns matched against item paths.
	ExcludePatterns []string

	// MaxItemSizeBytes is the item size ceiling. Items above it are
	// dropped during filtering.
	MaxItemSizeBytes int64

	// ChunkSize is the requested downstream chunk size.
	ChunkSize int

	// ChunkOverlap is the requested overlap between chunks.
	ChunkOverlap int

	// CallsPerWindow is the adapter call budget per rate window.
	CallsPerWindow int

	// WindowDuration is the rate window length.
	WindowDuration time.Duration

	// Retry is the batch submission retry policy.
	Retry RetryPolicy
}

// DefaultSettings returns the default connector settings.
func DefaultSettings() ConnectorSettings {
	return ConnectorSettings{
		BatchSize:               DefaultBatchSize,
		MaxConcurrentIngestions: DefaultMaxConcurrentIngestions,
		IngestInterval:          DefaultIngestInterval,
		SyncInterval:            DefaultSyncInterval,
		IncrementalSync:         true,
		AutoIngest:              true,
		MaxItemSizeBytes:        DefaultMaxItemSizeBytes,
		ChunkSize:               DefaultChunkSize,
		ChunkOverlap:            DefaultChunkOverlap,
		CallsPerWindow:          DefaultCallsPerWindow,
		WindowDuration:          DefaultWindowDuration,
		Retry:                   NoRetry(),
	}
}

// Normalised returns a copy of s with zero or out-of-range fields
// replaced by defaults.
func (s ConnectorSettings) Normalised() ConnectorSettings {
	def := DefaultSettings()
	if s.BatchSize <= 0 {
		s.BatchSize = def.BatchSize
	}
	if s.MaxConcurrentIngestions <= 0 {
		s.MaxConcurrentIngestions = def.MaxConcurrentIngestions
	}
	if s.IngestInterval <= 0 {
		s.IngestInterval = def.IngestInterval
	}
	if s.SyncInterval <= 0 {
		s.SyncInterval = def.SyncInterval
	}
	if s.MaxItemSizeBytes <= 0 {
		s.MaxItemSizeBytes = def.MaxItemSizeBytes
	}
	if s.ChunkSize <= 0 {
		s.ChunkSize = def.ChunkSize
	}
	if s.ChunkOverlap < 0 {
		s.ChunkOverlap = def.ChunkOverlap
	}
	if s.ChunkOverlap >= s.ChunkSize {
		s.ChunkOverlap = s.ChunkSize / 4
	}
	if s.CallsPerWindow <= 0 {
		s.CallsPerWindow = def.CallsPerWindow
	}
	if s.WindowDuration <= 0 {
		s.WindowDuration = def.WindowDuration
	}
	if s.Retry.MaxAttempts <= 0 {
		s.Retry = NoRetry()
	}
	return s
}
