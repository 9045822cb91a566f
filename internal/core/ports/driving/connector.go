package driving

import (
	"context"

	"github.com/driftline-labs/driftline/internal/core/domain"
)

// Progress is reported after each batch during an ingest run.
// Counts are cumulative for the run.
type Progress struct {
	// ProcessedCount is the number of items processed so far.
	ProcessedCount int

	// TotalCount is the number of items that entered the run.
	TotalCount int

	// SuccessCount is the number of records accepted so far.
	SuccessCount int

	// FailCount is the number of records failed so far.
	FailCount int

	// BatchIndex is the zero-based index of the batch just finished.
	BatchIndex int

	// TotalBatches is the total number of batches in the run.
	TotalBatches int
}

// ProgressFunc receives batch progress during an ingest run.
type ProgressFunc func(Progress)

// ConnectorService drives one connector instance: registration,
// manual and scheduled cycles, status snapshots and teardown.
type ConnectorService interface {
	// Register upserts the source with the pipeline. Registration
	// failure records the error and leaves the session unconnected;
	// a new attempt must be triggered explicitly.
	Register(ctx context.Context) error

	// RunIngestCycle runs a full discover+ingest cycle, or delegates
	// to incremental sync when the session is configured for it.
	RunIngestCycle(ctx context.Context) error

	// RunSyncCycle runs an incremental cycle: discover changes since
	// the cursor, ingest them, advance the cursor.
	RunSyncCycle(ctx context.Context) error

	// Snapshot returns a read-only copy of the connector state.
	Snapshot() domain.ConnectorSnapshot

	// Disconnect tears the session down: scheduled tasks stop and
	// in-flight results are discarded rather than written back.
	Disconnect()
}
