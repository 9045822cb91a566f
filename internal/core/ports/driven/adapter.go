package driven

import (
	"context"
	"time"

	"github.com/driftline-labs/driftline/internal/core/domain"
)

// RootContainer is the container ID that seeds a full scan.
const RootContainer = ""

// Page is one page of a paginated adapter listing. A page yields leaf
// items, sub-containers to traverse, or both.
type Page struct {
	// Items are the leaf items on this page.
	Items []domain.DiscoveredItem

	// Containers are sub-container IDs to enqueue for traversal.
	Containers []string

	// NextCursor is the opaque cursor for the next page, empty when
	// this is the last page.
	NextCursor string
}

// AdapterCapabilities describes what a source adapter supports.
type AdapterCapabilities struct {
	// SupportsChangeFeed indicates ChangesPage queries a dedicated
	// change feed. When false the engine falls back to RecentPage and
	// filters by modification time itself.
	SupportsChangeFeed bool

	// SupportsHierarchy indicates the source has nested containers.
	SupportsHierarchy bool

	// SupportsWatch indicates Watch delivers real-time change events.
	SupportsWatch bool

	// RequiresAuth indicates the adapter needs credentials.
	RequiresAuth bool

	// SupportsValidation indicates Validate performs a real check.
	SupportsValidation bool
}

// SourceAdapter is the vendor-specific boundary: paginated listing,
// detail fetch and content fetch for one remote source. Adapters
// distinguish rate-limit errors (domain.RateLimitError) from generic
// transport errors so the engine can abort and surface them.
type SourceAdapter interface {
	// SourceID returns the configured source identifier.
	SourceID() string

	// SourceType returns the adapter type identifier (e.g. "filesystem").
	SourceType() string

	// Capabilities returns what this adapter supports.
	Capabilities() AdapterCapabilities

	// Validate checks the adapter is configured and reachable.
	Validate(ctx context.Context) error

	// ListPage returns one page of a container's entries. Pass
	// RootContainer and an empty cursor to start a full scan.
	ListPage(ctx context.Context, containerID, cursor string) (*Page, error)

	// ChangesPage returns one page of items changed since the given
	// time. Only meaningful when SupportsChangeFeed is true.
	ChangesPage(ctx context.Context, since time.Time, cursor string) (*Page, error)

	// RecentPage returns one page of recently modified items, newest
	// first. The generic fallback when no change feed exists.
	RecentPage(ctx context.Context, cursor string) (*Page, error)

	// GetDetail fetches the enriched form of a single item.
	GetDetail(ctx context.Context, itemID string) (*domain.ItemDetail, error)

	// FetchContent fetches the raw content of a single item.
	FetchContent(ctx context.Context, itemID string) ([]byte, error)

	// Watch delivers real-time change events. Only available when
	// SupportsWatch is true. The channel closes when ctx is cancelled.
	Watch(ctx context.Context) (<-chan domain.DiscoveredItem, error)

	// Close releases adapter resources.
	Close() error
}
