// Package file is the TOML-backed configuration store. Configuration
// lives in a single file (default ~/.driftline/config.toml) holding
// the pipeline endpoint, connector tuning, and configured sources.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/driftline-labs/driftline/internal/core/domain"
)

// Config is the on-disk configuration layout.
type Config struct {
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Connector ConnectorConfig `toml:"connector"`
	Sources   []SourceConfig  `toml:"sources"`
}

// PipelineConfig selects and configures the downstream pipeline.
// An empty Endpoint means the in-memory pipeline (dry run).
type PipelineConfig struct {
	Endpoint string `toml:"endpoint"`
	APIKey   string `toml:"api_key"`
}

// SourceConfig describes one configured source.
type SourceConfig struct {
	ID       string `toml:"id"`
	Type     string `toml:"type"`
	Name     string `toml:"name"`
	Path     string `toml:"path"`
	PageSize int    `toml:"page_size"`
}

// ConnectorConfig mirrors domain.ConnectorSettings with TOML-friendly
// types. Intervals and durations are strings like "5m" or "1h"; zero
// values fall back to defaults. Fields where false or 0 is a valid
// setting are pointers, so absent stays distinguishable from explicit.
type ConnectorConfig struct {
	BatchSize               int      `toml:"batch_size"`
	MaxConcurrentIngestions int      `toml:"max_concurrent_ingestions"`
	IngestInterval          string   `toml:"ingest_interval"`
	SyncInterval            string   `toml:"sync_interval"`
	IncrementalSync         *bool    `toml:"incremental_sync"`
	AutoIngest              *bool    `toml:"auto_ingest"`
	IncludeExtensions       []string `toml:"include_extensions"`
	ExcludePatterns         []string `toml:"exclude_patterns"`
	MaxItemSizeBytes        int64    `toml:"max_item_size_bytes"`
	ChunkSize               int      `toml:"chunk_size"`
	ChunkOverlap            *int     `toml:"chunk_overlap"`
	CallsPerWindow          int      `toml:"calls_per_window"`
	WindowDuration          string   `toml:"window_duration"`
	RetryAttempts           int      `toml:"retry_attempts"`
	RetryBackoff            string   `toml:"retry_backoff"`
}

// ConfigStore loads and saves the TOML configuration file.
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	config   Config
}

// NewConfigStore creates a TOML config store.
// If configDir is empty, defaults to ~/.driftline/config.toml.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".driftline")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	s := &ConfigStore{
		filePath: filepath.Join(configDir, "config.toml"),
	}

	if err := s.Load(); err != nil {
		return nil, err
	}

	return s, nil
}

// Load reads configuration from the TOML file. A missing file leaves
// the zero config in place.
func (s *ConfigStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.config = Config{}
			return nil
		}
		return err
	}

	var loaded Config
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", s.filePath, err)
	}

	s.config = loaded
	return nil
}

// Save persists the current configuration to disk.
func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// save writes the TOML file (caller must hold lock).
func (s *ConfigStore) save() error {
	data, err := toml.Marshal(s.config)
	if err != nil {
		return err
	}

	// Restricted permissions: the file may carry an API key.
	return os.WriteFile(s.filePath, data, 0600)
}

// Config returns a copy of the loaded configuration.
func (s *ConfigStore) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.config
	out.Sources = append([]SourceConfig(nil), s.config.Sources...)
	return out
}

// SetConfig replaces the configuration and persists it.
func (s *ConfigStore) SetConfig(config Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config = config
	return s.save()
}

// AddSource appends a source, assigning an ID when missing, and
// persists the file. Returns the stored source.
func (s *ConfigStore) AddSource(source SourceConfig) (SourceConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	for _, existing := range s.config.Sources {
		if existing.ID == source.ID {
			return SourceConfig{}, fmt.Errorf("%w: source %s", domain.ErrAlreadyExists, source.ID)
		}
	}

	s.config.Sources = append(s.config.Sources, source)
	if err := s.save(); err != nil {
		return SourceConfig{}, err
	}
	return source, nil
}

// Settings converts the connector section to domain settings,
// normalising zero fields to defaults.
func (s *ConfigStore) Settings() (domain.ConnectorSettings, error) {
	s.mu.RLock()
	c := s.config.Connector
	s.mu.RUnlock()

	ingestInterval, err := parseDuration(c.IngestInterval, "ingest_interval")
	if err != nil {
		return domain.ConnectorSettings{}, err
	}
	syncInterval, err := parseDuration(c.SyncInterval, "sync_interval")
	if err != nil {
		return domain.ConnectorSettings{}, err
	}
	windowDuration, err := parseDuration(c.WindowDuration, "window_duration")
	if err != nil {
		return domain.ConnectorSettings{}, err
	}
	retryBackoff, err := parseDuration(c.RetryBackoff, "retry_backoff")
	if err != nil {
		return domain.ConnectorSettings{}, err
	}

	settings := domain.DefaultSettings()
	settings.BatchSize = c.BatchSize
	settings.MaxConcurrentIngestions = c.MaxConcurrentIngestions
	settings.IngestInterval = ingestInterval
	settings.SyncInterval = syncInterval
	// Absent booleans keep their defaults; false only when set explicitly.
	if c.IncrementalSync != nil {
		settings.IncrementalSync = *c.IncrementalSync
	}
	if c.AutoIngest != nil {
		settings.AutoIngest = *c.AutoIngest
	}
	settings.IncludeExtensions = c.IncludeExtensions
	settings.ExcludePatterns = c.ExcludePatterns
	settings.MaxItemSizeBytes = c.MaxItemSizeBytes
	settings.ChunkSize = c.ChunkSize
	// Like the booleans: zero overlap is a valid setting, so only an
	// explicit value overrides the default.
	if c.ChunkOverlap != nil {
		settings.ChunkOverlap = *c.ChunkOverlap
	}
	settings.CallsPerWindow = c.CallsPerWindow
	settings.WindowDuration = windowDuration
	settings.Retry = domain.RetryPolicy{MaxAttempts: c.RetryAttempts, Backoff: retryBackoff}

	return settings.Normalised(), nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

func parseDuration(value, field string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", domain.ErrInvalidInput, field, value)
	}
	return d, nil
}
