package services

import (
	"context"
	"fmt"
	"time"

	"github.com/driftline-labs/driftline/internal/core/domain"
	"github.com/driftline-labs/driftline/internal/core/ports/driven"
	"github.com/driftline-labs/driftline/internal/logger"
	"github.com/driftline-labs/driftline/internal/ratelimit"
)

// DiscoveryEngine enumerates remote items through a source adapter and
// applies the configured filters. Every adapter call acquires from the
// shared rate limiter first; a rate-limit error aborts the discovery
// call entirely and partial results are discarded.
type DiscoveryEngine struct {
	adapter driven.SourceAdapter
	limiter *ratelimit.Limiter
	filter  *domain.ItemFilter
}

// NewDiscoveryEngine creates a discovery engine for one adapter.
func NewDiscoveryEngine(adapter driven.SourceAdapter, limiter *ratelimit.Limiter, filter *domain.ItemFilter) *DiscoveryEngine {
	return &DiscoveryEngine{
		adapter: adapter,
		limiter: limiter,
		filter:  filter,
	}
}

// Discover enumerates items. A full scan walks the container hierarchy
// breadth-first; an incremental scan queries items changed since the
// given cursor time. Traversal order follows adapter pagination and is
// not globally sorted. Items failing a filter are dropped silently.
func (e *DiscoveryEngine) Discover(ctx context.Context, fullScan bool, since time.Time) ([]domain.DiscoveredItem, error) {
	var (
		items []domain.DiscoveredItem
		err   error
	)

	if fullScan {
		items, err = e.fullScan(ctx)
	} else {
		items, err = e.incrementalScan(ctx, since)
	}
	if err != nil {
		return nil, err
	}

	filtered := e.filter.Apply(items)
	logger.Debug("Discovery for %s: %d items, %d after filtering",
		e.adapter.SourceID(), len(items), len(filtered))
	return filtered, nil
}

// fullScan walks the container hierarchy breadth-first, seeded with
// the root container. Each dequeued container's listing yields leaf
// items and sub-containers to enqueue.
func (e *DiscoveryEngine) fullScan(ctx context.Context) ([]domain.DiscoveredItem, error) {
	var items []domain.DiscoveredItem

	queue := []string{driven.RootContainer}
	for len(queue) > 0 {
		container := queue[0]
		queue = queue[1:]

		cursor := ""
		for {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}

			page, err := e.adapter.ListPage(ctx, container, cursor)
			if err != nil {
				return nil, fmt.Errorf("list container %q: %w", container, err)
			}

			items = append(items, page.Items...)
			queue = append(queue, page.Containers...)

			if page.NextCursor == "" {
				break
			}
			cursor = page.NextCursor
		}
	}

	return items, nil
}

// incrementalScan queries items changed since the cursor time, using
// the adapter's change feed when available and falling back to the
// generic recent-items query otherwise.
func (e *DiscoveryEngine) incrementalScan(ctx context.Context, since time.Time) ([]domain.DiscoveredItem, error) {
	if e.adapter.Capabilities().SupportsChangeFeed {
		return e.paginate(ctx, func(cursor string) (*driven.Page, error) {
			return e.adapter.ChangesPage(ctx, since, cursor)
		})
	}

	// No change feed: scan recent items (newest first) and stop once
	// the page falls entirely behind the cursor.
	var items []domain.DiscoveredItem
	cursor := ""
	for {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		page, err := e.adapter.RecentPage(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("list recent items: %w", err)
		}

		exhausted := false
		for i := range page.Items {
			if page.Items[i].ModifiedAt.After(since) {
				items = append(items, page.Items[i])
			} else {
				exhausted = true
			}
		}

		if exhausted || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return items, nil
}

// paginate drains a paged listing, acquiring rate budget before each
// call.
func (e *DiscoveryEngine) paginate(ctx context.Context, fetch func(cursor string) (*driven.Page, error)) ([]domain.DiscoveredItem, error) {
	var items []domain.DiscoveredItem

	cursor := ""
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		page, err := fetch(cursor)
		if err != nil {
			return nil, fmt.Errorf("list changes: %w", err)
		}

		items = append(items, page.Items...)

		if page.NextCursor == "" {
			return items, nil
		}
		cursor = page.NextCursor
	}
}
