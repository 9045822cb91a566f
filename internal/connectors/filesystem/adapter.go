// Package filesystem provides the reference source adapter: a local
// directory tree. Directories are containers, files are leaf items,
// and change queries compare modification times. It needs no
// authentication, which makes it the default adapter for trying the
// engine end-to-end.
package filesystem

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/driftline-labs/driftline/internal/core/domain"
	"github.com/driftline-labs/driftline/internal/core/ports/driven"
	"github.com/driftline-labs/driftline/internal/logger"
)

// DefaultPageSize is the number of entries returned per listing page.
const DefaultPageSize = 100

// Ensure Adapter implements the interface.
var _ driven.SourceAdapter = (*Adapter)(nil)

// Config holds filesystem adapter configuration.
type Config struct {
	// Path is the root directory to sync.
	Path string

	// PageSize overrides the listing page size. Zero means default.
	PageSize int
}

// Adapter exposes a directory tree as a source.
type Adapter struct {
	sourceID string
	root     string
	pageSize int

	mu     sync.Mutex
	closed bool
}

// New creates a filesystem adapter rooted at cfg.Path.
func New(sourceID string, cfg Config) (*Adapter, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: path is required", domain.ErrInvalidInput)
	}
	root, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Adapter{
		sourceID: sourceID,
		root:     root,
		pageSize: pageSize,
	}, nil
}

// SourceID returns the configured source identifier.
func (a *Adapter) SourceID() string {
	return a.sourceID
}

// SourceType returns the adapter type identifier.
func (a *Adapter) SourceType() string {
	return "filesystem"
}

// Capabilities returns the adapter's capabilities.
func (a *Adapter) Capabilities() driven.AdapterCapabilities {
	return driven.AdapterCapabilities{
		SupportsChangeFeed: true, // modtime scan acts as the change feed
		SupportsHierarchy:  true,
		SupportsWatch:      true,
		RequiresAuth:       false,
		SupportsValidation: true,
	}
}

// Validate checks the root directory exists and is readable.
func (a *Adapter) Validate(_ context.Context) error {
	info, err := os.Stat(a.root)
	if err != nil {
		return fmt.Errorf("stat %s: %w", a.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, a.root)
	}
	if _, err := os.ReadDir(a.root); err != nil {
		return fmt.Errorf("read %s: %w", a.root, err)
	}
	return nil
}

// ListPage lists one page of a container's entries. Container IDs are
// root-relative directory paths; the root container is the empty
// string. Cursors are numeric offsets into the sorted entry list.
func (a *Adapter) ListPage(_ context.Context, containerID, cursor string) (*driven.Page, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}

	dir, err := a.resolve(containerID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", containerID, err)
	}

	offset, err := parseCursor(cursor)
	if err != nil {
		return nil, err
	}

	page := &driven.Page{}
	end := offset + a.pageSize
	if end > len(entries) {
		end = len(entries)
	}

	for _, entry := range entries[offset:end] {
		rel := filepath.ToSlash(filepath.Join(containerID, entry.Name()))
		if entry.IsDir() {
			page.Containers = append(page.Containers, rel)
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // entry vanished between ReadDir and Info
		}
		page.Items = append(page.Items, a.toItem(rel, info))
	}

	if end < len(entries) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

// ChangesPage returns files modified strictly after the given time.
// The walk is sorted by path so cursors page stably.
func (a *Adapter) ChangesPage(_ context.Context, since time.Time, cursor string) (*driven.Page, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}

	items, err := a.walkFiles(func(item *domain.DiscoveredItem) bool {
		return item.ModifiedAt.After(since)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })

	return a.slicePage(items, cursor)
}

// RecentPage returns files ordered by modification time, newest first.
func (a *Adapter) RecentPage(_ context.Context, cursor string) (*driven.Page, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}

	items, err := a.walkFiles(nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ModifiedAt.After(items[j].ModifiedAt) })

	return a.slicePage(items, cursor)
}

// GetDetail reads a single file and its metadata.
func (a *Adapter) GetDetail(_ context.Context, itemID string) (*domain.ItemDetail, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}

	path, err := a.resolve(itemID)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, itemID)
		}
		return nil, fmt.Errorf("stat %s: %w", itemID, err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", itemID, err)
	}

	return &domain.ItemDetail{
		Item:    a.toItem(itemID, info),
		Content: content,
		Metadata: map[string]any{
			"size_bytes": info.Size(),
			"mode":       info.Mode().String(),
		},
	}, nil
}

// FetchContent reads a single file's bytes.
func (a *Adapter) FetchContent(_ context.Context, itemID string) ([]byte, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}

	path, err := a.resolve(itemID)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, itemID)
		}
		return nil, fmt.Errorf("read %s: %w", itemID, err)
	}
	return content, nil
}

// Watch emits an item for every file created or written under the
// root. The channel closes when ctx is cancelled.
func (a *Adapter) Watch(ctx context.Context) (<-chan domain.DiscoveredItem, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	// Watch the root and every existing subdirectory.
	err = filepath.WalkDir(a.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", a.root, err)
	}

	events := make(chan domain.DiscoveredItem)
	go func() {
		defer close(events)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				info, err := os.Stat(event.Name)
				if err != nil {
					continue
				}
				if info.IsDir() {
					// New subdirectories join the watch set.
					_ = watcher.Add(event.Name)
					continue
				}
				rel, err := filepath.Rel(a.root, event.Name)
				if err != nil {
					continue
				}
				select {
				case events <- a.toItem(filepath.ToSlash(rel), info):
				case <-ctx.Done():
					return
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Watcher error for %s: %v", a.sourceID, err)
			}
		}
	}()

	return events, nil
}

// Close marks the adapter closed. Further calls fail.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

func (a *Adapter) checkOpen() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return domain.ErrSessionClosed
	}
	return nil
}

// resolve maps a root-relative ID to an absolute path, rejecting
// traversal outside the root.
func (a *Adapter) resolve(id string) (string, error) {
	path := filepath.Join(a.root, filepath.FromSlash(id))
	rel, err := filepath.Rel(a.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes the source root", domain.ErrInvalidInput, id)
	}
	return path, nil
}

// toItem builds a DiscoveredItem from file info.
func (a *Adapter) toItem(rel string, info os.FileInfo) domain.DiscoveredItem {
	return domain.DiscoveredItem{
		ID:          rel,
		SourceID:    a.sourceID,
		DisplayName: filepath.Base(rel),
		Path:        rel,
		SizeBytes:   info.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(rel)),
		ModifiedAt:  info.ModTime(),
		Attachment: domain.RawAttachment{
			Vendor:  "filesystem",
			Payload: []byte(filepath.Join(a.root, filepath.FromSlash(rel))),
		},
	}
}

// walkFiles collects every file under the root, optionally filtered.
func (a *Adapter) walkFiles(keep func(*domain.DiscoveredItem) bool) ([]domain.DiscoveredItem, error) {
	var items []domain.DiscoveredItem

	err := filepath.WalkDir(a.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil // entry vanished mid-walk
		}
		rel, err := filepath.Rel(a.root, path)
		if err != nil {
			return err
		}
		item := a.toItem(filepath.ToSlash(rel), info)
		if keep == nil || keep(&item) {
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", a.root, err)
	}
	return items, nil
}

// slicePage pages a pre-built item list by numeric cursor.
func (a *Adapter) slicePage(items []domain.DiscoveredItem, cursor string) (*driven.Page, error) {
	offset, err := parseCursor(cursor)
	if err != nil {
		return nil, err
	}
	if offset > len(items) {
		offset = len(items)
	}

	end := offset + a.pageSize
	if end > len(items) {
		end = len(items)
	}

	page := &driven.Page{Items: items[offset:end]}
	if end < len(items) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func parseCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("%w: cursor %q", domain.ErrInvalidInput, cursor)
	}
	return offset, nil
}
