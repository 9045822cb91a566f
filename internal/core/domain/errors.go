package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown adapter or content type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrSessionClosed indicates the connector session has been
	// disconnected; late results against it are discarded.
	ErrSessionClosed = errors.New("session closed")

	// ErrCycleInProgress indicates a discovery/ingest cycle is already
	// running for the session.
	ErrCycleInProgress = errors.New("cycle in progress")

	// ErrNotRegistered indicates the session has not completed
	// registration with the pipeline.
	ErrNotRegistered = errors.New("source not registered")

	// Authentication errors.

	// ErrAuthRequired indicates the adapter requires authentication but
	// none is configured.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthInvalid indicates the credentials were rejected.
	ErrAuthInvalid = errors.New("authentication invalid")

	// ErrRateLimited indicates the call budget for the current window is
	// exhausted.
	ErrRateLimited = errors.New("rate limited")
)

// RateLimitError reports an exhausted call budget and carries the
// remaining wait until the window resets. It matches ErrRateLimited
// under errors.Is.
type RateLimitError struct {
	// RetryAfter is how long until the budget window resets.
	RetryAfter time.Duration

	// ResetAt is the absolute reset time.
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// Is makes RateLimitError match ErrRateLimited.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// IsRateLimited reports whether err carries a RateLimitError.
func IsRateLimited(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle) || errors.Is(err, ErrRateLimited)
}

// ValidationError indicates an item could not be mapped to a
// canonical record (malformed or unsupported). The item is counted as
// failed and the run continues.
type ValidationError struct {
	ItemID string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("item %s: %s", e.ItemID, e.Reason)
}

// PipelineError indicates a batch-level submission failure at the
// pipeline boundary. The whole batch is counted as failed and the run
// continues with the next batch.
type PipelineError struct {
	BatchIndex int
	Err        error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("ingest batch %d: %v", e.BatchIndex, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err indicates an authentication failure
// that should disconnect the session.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthInvalid) || errors.Is(err, ErrAuthRequired)
}
