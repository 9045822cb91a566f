package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline-labs/driftline/internal/core/domain"
	"github.com/driftline-labs/driftline/internal/core/ports/driven"
	"github.com/driftline-labs/driftline/internal/ratelimit"
)

func testLimiter() *ratelimit.Limiter {
	return ratelimit.New(1_000_000, time.Hour)
}

func identities(items []domain.DiscoveredItem) map[domain.ItemIdentity]bool {
	set := make(map[domain.ItemIdentity]bool, len(items))
	for i := range items {
		set[items[i].Identity()] = true
	}
	return set
}

func TestFullScanTraversesContainerHierarchy(t *testing.T) {
	adapter := newFakeAdapter()
	items := makeItems(5)

	// Root lists two sub-containers and one direct item.
	adapter.pages[pageKey(driven.RootContainer, "")] = &driven.Page{
		Items:      items[:1],
		Containers: []string{"folder-a", "folder-b"},
	}
	// folder-a paginates across two pages.
	adapter.pages[pageKey("folder-a", "")] = &driven.Page{
		Items:      items[1:2],
		NextCursor: "p2",
	}
	adapter.pages[pageKey("folder-a", "p2")] = &driven.Page{
		Items: items[2:3],
	}
	adapter.pages[pageKey("folder-b", "")] = &driven.Page{
		Items: items[3:5],
	}

	engine := NewDiscoveryEngine(adapter, testLimiter(), mustFilter(testSettings()))

	found, err := engine.Discover(context.Background(), true, time.Time{})
	require.NoError(t, err)
	assert.Len(t, found, 5)
	assert.Equal(t, identities(items), identities(found))
}

func TestFullScanIsIdempotent(t *testing.T) {
	adapter := newFakeAdapter()
	items := makeItems(8)
	adapter.pages[pageKey(driven.RootContainer, "")] = &driven.Page{Items: items}

	engine := NewDiscoveryEngine(adapter, testLimiter(), mustFilter(testSettings()))

	first, err := engine.Discover(context.Background(), true, time.Time{})
	require.NoError(t, err)
	second, err := engine.Discover(context.Background(), true, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, identities(first), identities(second))
}

func TestDiscoverAppliesFiltersInOrder(t *testing.T) {
	settings := testSettings()
	settings.IncludeExtensions = []string{".md"}
	settings.MaxItemSizeBytes = 1024
	settings.ExcludePatterns = []string{"docs/secret*"}

	adapter := newFakeAdapter()
	pass := makeItems(1)[0]
	wrongExt := domain.DiscoveredItem{ID: "bin", SourceID: "src-1", Path: "docs/tool.exe", SizeBytes: 10}
	tooBig := domain.DiscoveredItem{ID: "big", SourceID: "src-1", Path: "docs/big.md", SizeBytes: 4096}
	excluded := domain.DiscoveredItem{ID: "sec", SourceID: "src-1", Path: "docs/secret.md", SizeBytes: 10}
	adapter.pages[pageKey(driven.RootContainer, "")] = &driven.Page{
		Items: []domain.DiscoveredItem{pass, wrongExt, tooBig, excluded},
	}

	engine := NewDiscoveryEngine(adapter, testLimiter(), mustFilter(settings))

	found, err := engine.Discover(context.Background(), true, time.Time{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, pass.ID, found[0].ID)
}

func TestDiscoverRateLimitAbortsAndDiscardsPartials(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.pages[pageKey(driven.RootContainer, "")] = &driven.Page{
		Items:      makeItems(3),
		Containers: []string{"folder-a"},
	}
	adapter.pages[pageKey("folder-a", "")] = &driven.Page{Items: makeItems(2)}

	// Budget covers the root listing only; the second call exceeds it.
	limiter := ratelimit.New(1, time.Hour)
	engine := NewDiscoveryEngine(adapter, limiter, mustFilter(testSettings()))

	found, err := engine.Discover(context.Background(), true, time.Time{})
	require.Error(t, err)
	assert.True(t, domain.IsRateLimited(err))
	assert.Nil(t, found)
}

func TestIncrementalScanUsesChangeFeed(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.caps.SupportsChangeFeed = true
	items := makeItems(4)
	adapter.changePages[""] = &driven.Page{Items: items[:2], NextCursor: "p2"}
	adapter.changePages["p2"] = &driven.Page{Items: items[2:]}

	engine := NewDiscoveryEngine(adapter, testLimiter(), mustFilter(testSettings()))

	found, err := engine.Discover(context.Background(), false, time.Now())
	require.NoError(t, err)
	assert.Len(t, found, 4)
}

func TestIncrementalScanFallsBackToRecentItems(t *testing.T) {
	adapter := newFakeAdapter() // SupportsChangeFeed is false
	items := makeItems(6)
	since := items[3].ModifiedAt

	// Recent items newest first; the page straddles the cursor.
	newest := []domain.DiscoveredItem{items[5], items[4], items[3], items[2]}
	adapter.recentPages[""] = &driven.Page{Items: newest, NextCursor: "p2"}
	adapter.recentPages["p2"] = &driven.Page{Items: []domain.DiscoveredItem{items[1], items[0]}}

	engine := NewDiscoveryEngine(adapter, testLimiter(), mustFilter(testSettings()))

	found, err := engine.Discover(context.Background(), false, since)
	require.NoError(t, err)

	// Only items modified strictly after the cursor survive, and
	// pagination stops once a page falls behind the cursor.
	require.Len(t, found, 2)
	assert.Equal(t, "item-0005", found[0].ID)
	assert.Equal(t, "item-0004", found[1].ID)
	assert.Equal(t, 1, adapter.listCalls)
}

func TestDiscoverContextCancellation(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.pages[pageKey(driven.RootContainer, "")] = &driven.Page{Items: makeItems(2)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewDiscoveryEngine(adapter, testLimiter(), mustFilter(testSettings()))
	_, err := engine.Discover(ctx, true, time.Time{})
	require.ErrorIs(t, err, context.Canceled)
}
