package domain

import "time"

// Task IDs for the built-in periodic tasks.
const (
	// TaskIDIngest is the coarse full discover+ingest task.
	TaskIDIngest = "ingest"

	// TaskIDSync is the fine incremental sync task.
	TaskIDSync = "sync"
)

// ScheduledTask represents a recurring background task.
type ScheduledTask struct {
	// ID is the unique identifier for the task.
	ID string

	// SourceID links the task to a connector's source.
	SourceID string

	// Name is a human-readable name for the task.
	Name string

	// Interval defines how often the task should run.
	Interval time.Duration

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time

	// Enabled indicates whether the task is active.
	Enabled bool
}

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	// TaskID identifies which task was run.
	TaskID string

	// SourceID links the run to a connector's source.
	SourceID string

	// StartedAt is when the task started.
	StartedAt time.Time

	// EndedAt is when the task completed.
	EndedAt time.Time

	// Success indicates whether the task completed without error.
	Success bool

	// Skipped indicates the firing was dropped because another cycle
	// held the single-flight guard.
	Skipped bool

	// Error contains the error message if Success is false.
	Error string

	// ItemsProcessed is a count of records handled in the run.
	ItemsProcessed int
}
