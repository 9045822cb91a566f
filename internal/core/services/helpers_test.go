package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/driftline-labs/driftline/internal/core/domain"
	"github.com/driftline-labs/driftline/internal/core/ports/driven"
)

// --- Shared fakes for service tests ---

// pageKey addresses an authored page by container and cursor.
func pageKey(containerID, cursor string) string {
	return containerID + "|" + cursor
}

// fakeAdapter implements driven.SourceAdapter with authored pages.
type fakeAdapter struct {
	sourceID   string
	sourceType string
	caps       driven.AdapterCapabilities

	// pages maps pageKey(container, cursor) to the page served.
	pages map[string]*driven.Page
	// changePages maps cursor to a change-feed page.
	changePages map[string]*driven.Page
	// recentPages maps cursor to a recent-items page.
	recentPages map[string]*driven.Page

	details map[string]*domain.ItemDetail
	content map[string][]byte

	validateErr error
	listErr     error
	detailErr   error
	contentErr  error

	// detailOmitsContent forces the ingestor to fetch content with a
	// separate FetchContent call.
	detailOmitsContent bool

	mu           sync.Mutex
	listCalls    int
	detailCalls  int
	contentCalls int
	closed       bool
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		sourceID:    "src-1",
		sourceType:  "fake",
		pages:       make(map[string]*driven.Page),
		changePages: make(map[string]*driven.Page),
		recentPages: make(map[string]*driven.Page),
		details:     make(map[string]*domain.ItemDetail),
		content:     make(map[string][]byte),
	}
}

func (a *fakeAdapter) SourceID() string                          { return a.sourceID }
func (a *fakeAdapter) SourceType() string                        { return a.sourceType }
func (a *fakeAdapter) Capabilities() driven.AdapterCapabilities  { return a.caps }
func (a *fakeAdapter) Validate(_ context.Context) error          { return a.validateErr }
func (a *fakeAdapter) Watch(_ context.Context) (<-chan domain.DiscoveredItem, error) {
	return nil, domain.ErrUnsupportedType
}

func (a *fakeAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

func (a *fakeAdapter) ListPage(_ context.Context, containerID, cursor string) (*driven.Page, error) {
	a.mu.Lock()
	a.listCalls++
	a.mu.Unlock()

	if a.listErr != nil {
		return nil, a.listErr
	}
	if page, ok := a.pages[pageKey(containerID, cursor)]; ok {
		return page, nil
	}
	return &driven.Page{}, nil
}

func (a *fakeAdapter) ChangesPage(_ context.Context, _ time.Time, cursor string) (*driven.Page, error) {
	a.mu.Lock()
	a.listCalls++
	a.mu.Unlock()

	if a.listErr != nil {
		return nil, a.listErr
	}
	if page, ok := a.changePages[cursor]; ok {
		return page, nil
	}
	return &driven.Page{}, nil
}

func (a *fakeAdapter) RecentPage(_ context.Context, cursor string) (*driven.Page, error) {
	a.mu.Lock()
	a.listCalls++
	a.mu.Unlock()

	if a.listErr != nil {
		return nil, a.listErr
	}
	if page, ok := a.recentPages[cursor]; ok {
		return page, nil
	}
	return &driven.Page{}, nil
}

func (a *fakeAdapter) GetDetail(_ context.Context, itemID string) (*domain.ItemDetail, error) {
	a.mu.Lock()
	a.detailCalls++
	a.mu.Unlock()

	if a.detailErr != nil {
		return nil, a.detailErr
	}
	if detail, ok := a.details[itemID]; ok {
		return detail, nil
	}
	detail := &domain.ItemDetail{
		Item:     domain.DiscoveredItem{ID: itemID, SourceID: a.sourceID},
		Metadata: map[string]any{},
	}
	if !a.detailOmitsContent {
		detail.Content = a.itemContent(itemID)
	}
	return detail, nil
}

func (a *fakeAdapter) itemContent(itemID string) []byte {
	if content, ok := a.content[itemID]; ok {
		return content
	}
	return []byte("content of " + itemID)
}

func (a *fakeAdapter) FetchContent(_ context.Context, itemID string) ([]byte, error) {
	a.mu.Lock()
	a.contentCalls++
	a.mu.Unlock()

	if a.contentErr != nil {
		return nil, a.contentErr
	}
	return a.itemContent(itemID), nil
}

// fakePipeline implements driven.IngestionPipeline and records every
// submission. Failures can be injected per batch index.
type fakePipeline struct {
	mu          sync.Mutex
	registered  []driven.DataSourceDescriptor
	registerErr error
	requests    []driven.BatchRequest
	// throwOn maps batch index to a transport error.
	throwOn map[int]error
	// rejectOn maps batch index to a per-record rejection count.
	rejectOn map[int]int
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		throwOn:  make(map[int]error),
		rejectOn: make(map[int]int),
	}
}

func (p *fakePipeline) RegisterDataSource(_ context.Context, descriptor driven.DataSourceDescriptor) error {
	if p.registerErr != nil {
		return p.registerErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, descriptor)
	return nil
}

func (p *fakePipeline) IngestBatch(_ context.Context, req driven.BatchRequest) (driven.BatchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err, ok := p.throwOn[req.Batch.BatchIndex]; ok {
		return driven.BatchResult{}, err
	}

	p.requests = append(p.requests, req)

	rejected := p.rejectOn[req.Batch.BatchIndex]
	if rejected > len(req.Batch.Records) {
		rejected = len(req.Batch.Records)
	}
	return driven.BatchResult{
		Successful: len(req.Batch.Records) - rejected,
		Failed:     rejected,
	}, nil
}

func (p *fakePipeline) batchSizes() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	sizes := make([]int, 0, len(p.requests))
	for _, req := range p.requests {
		sizes = append(sizes, len(req.Batch.Records))
	}
	return sizes
}

// makeItems builds n discovered items in a stable order.
func makeItems(n int) []domain.DiscoveredItem {
	items := make([]domain.DiscoveredItem, 0, n)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		items = append(items, domain.DiscoveredItem{
			ID:          fmt.Sprintf("item-%04d", i),
			SourceID:    "src-1",
			DisplayName: fmt.Sprintf("Item %d", i),
			Path:        fmt.Sprintf("docs/item-%04d.md", i),
			SizeBytes:   512,
			ContentType: "text/markdown",
			ModifiedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	return items
}

// testSettings returns small-scale settings for service tests.
func testSettings() domain.ConnectorSettings {
	s := domain.DefaultSettings()
	s.BatchSize = 10
	s.MaxConcurrentIngestions = 2
	s.CallsPerWindow = 1_000_000
	s.WindowDuration = time.Hour
	return s
}

// mustFilter compiles a filter or panics; for test setup only.
func mustFilter(settings domain.ConnectorSettings) *domain.ItemFilter {
	f, err := domain.NewItemFilter(settings)
	if err != nil {
		panic(err)
	}
	return f
}
