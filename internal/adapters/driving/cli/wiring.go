package cli

import (
	"errors"
	"fmt"

	"github.com/driftline-labs/driftline/internal/adapters/driven/config/file"
	pipelinehttp "github.com/driftline-labs/driftline/internal/adapters/driven/pipeline/httpapi"
	pipelinemem "github.com/driftline-labs/driftline/internal/adapters/driven/pipeline/memory"
	"github.com/driftline-labs/driftline/internal/adapters/driven/storage/sqlite"
	"github.com/driftline-labs/driftline/internal/connectors/filesystem"
	"github.com/driftline-labs/driftline/internal/core/domain"
	"github.com/driftline-labs/driftline/internal/core/ports/driven"
	"github.com/driftline-labs/driftline/internal/core/ports/driving"
	"github.com/driftline-labs/driftline/internal/core/services"
	"github.com/driftline-labs/driftline/internal/logger"
)

// connector bundles everything wired for one source.
type connector struct {
	service   driving.ConnectorService
	scheduler *services.Scheduler
	close     func()
}

// buildConnector wires a session for one configured source. An empty
// sourceID selects the first source. Tests substitute this hook.
var buildConnector = wireConnector

func wireConnector(sourceID string, onProgress driving.ProgressFunc) (*connector, error) {
	cfgStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := cfgStore.Config()

	source, err := selectSource(cfg, sourceID)
	if err != nil {
		return nil, err
	}

	settings, err := cfgStore.Settings()
	if err != nil {
		return nil, err
	}

	adapter, err := buildAdapter(source)
	if err != nil {
		return nil, err
	}

	pipeline, err := buildPipeline(cfg.Pipeline)
	if err != nil {
		adapter.Close()
		return nil, err
	}

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		adapter.Close()
		return nil, fmt.Errorf("open state store: %w", err)
	}

	var opts []services.SessionOption
	if onProgress != nil {
		opts = append(opts, services.WithProgressFunc(onProgress))
	}

	session, err := services.NewConnectorSession(adapter, pipeline, store.SyncStateStore(), settings, opts...)
	if err != nil {
		adapter.Close()
		store.Close()
		return nil, err
	}

	return &connector{
		service:   session,
		scheduler: services.NewScheduler(session, store.SchedulerStore(), settings),
		close: func() {
			session.Disconnect()
			adapter.Close()
			store.Close()
		},
	}, nil
}

func selectSource(cfg file.Config, sourceID string) (file.SourceConfig, error) {
	if len(cfg.Sources) == 0 {
		return file.SourceConfig{}, errors.New("no sources configured; run 'driftline source add' first")
	}
	if sourceID == "" {
		return cfg.Sources[0], nil
	}
	for _, source := range cfg.Sources {
		if source.ID == sourceID {
			return source, nil
		}
	}
	return file.SourceConfig{}, fmt.Errorf("%w: source %s", domain.ErrNotFound, sourceID)
}

func buildAdapter(source file.SourceConfig) (driven.SourceAdapter, error) {
	switch source.Type {
	case "", "filesystem":
		adapter, err := filesystem.New(source.ID, filesystem.Config{
			Path:     source.Path,
			PageSize: source.PageSize,
		})
		if err != nil {
			return nil, err
		}
		return adapter, nil
	default:
		return nil, fmt.Errorf("%w: source type %q", domain.ErrUnsupportedType, source.Type)
	}
}

func buildPipeline(cfg file.PipelineConfig) (driven.IngestionPipeline, error) {
	if cfg.Endpoint == "" {
		logger.Info("No pipeline endpoint configured, records stay in memory")
		return pipelinemem.NewPipeline(), nil
	}
	pipeline, err := pipelinehttp.New(pipelinehttp.Config{
		BaseURL: cfg.Endpoint,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, err
	}
	return pipeline, nil
}
