package driven

import (
	"context"

	"github.com/driftline-labs/driftline/internal/core/domain"
)

// DataSourceDescriptor describes a source to the ingestion pipeline.
// Registration is an idempotent upsert keyed on SourceID.
type DataSourceDescriptor struct {
	// SourceID is the unique source identifier.
	SourceID string

	// SourceType identifies the adapter type.
	SourceType string

	// DisplayName is the human-readable source name.
	DisplayName string
}

// PipelineConfig carries per-batch processing hints for the pipeline.
type PipelineConfig struct {
	// ChunkSize is the requested chunk size in characters.
	ChunkSize int

	// ChunkOverlap is the requested overlap between chunks.
	ChunkOverlap int
}

// BatchRequest is one batch submission to the pipeline.
type BatchRequest struct {
	// SourceID identifies the submitting source.
	SourceID string

	// Batch carries the records and batch position.
	Batch domain.IngestionBatch

	// Config carries processing hints.
	Config PipelineConfig
}

// BatchResult is the pipeline's aggregate outcome for one batch.
// The pipeline boundary reports counts only, no per-record detail.
type BatchResult struct {
	// Successful is the number of records the pipeline accepted.
	Successful int

	// Failed is the number of records the pipeline rejected.
	Failed int
}

// IngestionPipeline is the downstream system that accepts canonical
// records. An error from IngestBatch (as opposed to a nonzero Failed
// count) means the whole batch failed in transit.
type IngestionPipeline interface {
	// RegisterDataSource upserts the source with the pipeline.
	RegisterDataSource(ctx context.Context, descriptor DataSourceDescriptor) error

	// IngestBatch submits one batch and returns aggregate counts.
	IngestBatch(ctx context.Context, req BatchRequest) (BatchResult, error)
}
