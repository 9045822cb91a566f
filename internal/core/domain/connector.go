package domain

import "time"

// ConnectorStatus is the lifecycle state of a connector session.
type ConnectorStatus string

// Connector lifecycle states. A session moves
// unregistered -> registering -> connected, then loops through
// discovering -> ingesting -> completed (or failed) on each cycle,
// and ends at disconnected on teardown or auth failure.
const (
	StatusUnregistered ConnectorStatus = "unregistered"
	StatusRegistering  ConnectorStatus = "registering"
	StatusConnected    ConnectorStatus = "connected"
	StatusDiscovering  ConnectorStatus = "discovering"
	StatusIngesting    ConnectorStatus = "ingesting"
	StatusCompleted    ConnectorStatus = "completed"
	StatusFailed       ConnectorStatus = "failed"
	StatusDisconnected ConnectorStatus = "disconnected"
)

// ConnectorStats holds cumulative counters for one discovery+ingest
// run. Counters never decrease within a run; they are reset only at
// the start of a fresh discovery cycle.
type ConnectorStats struct {
	// TotalDiscovered is the number of items that survived filtering.
	TotalDiscovered int

	// IngestedCount is the number of records the pipeline accepted.
	IngestedCount int

	// FailedCount is the number of records that failed mapping or
	// submission.
	FailedCount int
}

// SyncState is the incremental sync cursor for a source.
// LastSyncTime only ever advances forward.
type SyncState struct {
	// SourceID links to the source being synced.
	SourceID string

	// LastSyncTime bounds incremental discovery queries.
	LastSyncTime time.Time

	// LastSync is when the last successful cycle completed.
	LastSync time.Time
}

// ConnectorSnapshot is a read-only copy of a session's state.
// External readers receive snapshots, never live references.
type ConnectorSnapshot struct {
	// SourceID identifies the connector's source.
	SourceID string

	// Status is the current lifecycle state.
	Status ConnectorStatus

	// Stats are the counters for the current or most recent run.
	Stats ConnectorStats

	// LastSyncTime is the current cursor position.
	LastSyncTime time.Time

	// LastError is the most recent error message, empty when none.
	LastError string
}
