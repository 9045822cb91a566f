package driven

import (
	"context"

	"github.com/driftline-labs/driftline/internal/core/domain"
)

// SyncStateStore persists the incremental sync cursor per source.
type SyncStateStore interface {
	// Save stores or updates sync state.
	Save(ctx context.Context, state domain.SyncState) error

	// Get retrieves sync state for a source.
	// Returns domain.ErrNotFound when no state exists.
	Get(ctx context.Context, sourceID string) (*domain.SyncState, error)

	// Delete removes sync state for a source.
	Delete(ctx context.Context, sourceID string) error
}
