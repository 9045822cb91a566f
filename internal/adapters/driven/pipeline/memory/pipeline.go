// Package memory provides an in-memory ingestion pipeline. It accepts
// everything, records what it saw, and supports failure injection. The
// CLI uses it for dry runs; tests use it to observe batch traffic.
package memory

import (
	"context"
	"sync"

	"github.com/driftline-labs/driftline/internal/core/domain"
	"github.com/driftline-labs/driftline/internal/core/ports/driven"
	"github.com/driftline-labs/driftline/internal/logger"
)

var _ driven.IngestionPipeline = (*Pipeline)(nil)

// Pipeline is an in-memory IngestionPipeline.
type Pipeline struct {
	mu      sync.Mutex
	sources map[string]driven.DataSourceDescriptor
	records []domain.CanonicalRecord
	batches []driven.BatchRequest

	// RegisterErr, when set, is returned by RegisterDataSource.
	RegisterErr error

	// IngestErr, when set, is returned by every IngestBatch call.
	IngestErr error

	// RejectPerBatch, when positive, marks up to that many records of
	// each batch as failed.
	RejectPerBatch int
}

// NewPipeline creates an empty in-memory pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		sources: make(map[string]driven.DataSourceDescriptor),
	}
}

// RegisterDataSource upserts the descriptor keyed on SourceID.
func (p *Pipeline) RegisterDataSource(_ context.Context, descriptor driven.DataSourceDescriptor) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.RegisterErr != nil {
		return p.RegisterErr
	}

	p.sources[descriptor.SourceID] = descriptor
	logger.Debug("Pipeline registered source %s (%s)", descriptor.SourceID, descriptor.SourceType)
	return nil
}

// IngestBatch records the batch and returns counts honouring the
// configured injections.
func (p *Pipeline) IngestBatch(_ context.Context, req driven.BatchRequest) (driven.BatchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.IngestErr != nil {
		return driven.BatchResult{}, p.IngestErr
	}

	p.batches = append(p.batches, req)
	p.records = append(p.records, req.Batch.Records...)

	failed := p.RejectPerBatch
	if failed > len(req.Batch.Records) {
		failed = len(req.Batch.Records)
	}
	return driven.BatchResult{
		Successful: len(req.Batch.Records) - failed,
		Failed:     failed,
	}, nil
}

// Sources returns the registered descriptors keyed on SourceID.
func (p *Pipeline) Sources() map[string]driven.DataSourceDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]driven.DataSourceDescriptor, len(p.sources))
	for id, d := range p.sources {
		out[id] = d
	}
	return out
}

// Records returns a copy of every record received so far.
func (p *Pipeline) Records() []domain.CanonicalRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.CanonicalRecord(nil), p.records...)
}

// Batches returns a copy of every batch request received so far.
func (p *Pipeline) Batches() []driven.BatchRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]driven.BatchRequest(nil), p.batches...)
}
