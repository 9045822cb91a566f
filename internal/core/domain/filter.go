package domain

import (
	"fmt"
	"path"
	"strings"
)

// ItemFilter drops discovered items that fail the configured rules.
// Rules are applied in a fixed order: extension allow-list, size
// ceiling, exclude glob patterns. Dropped items are not counted as
// failures.
type ItemFilter struct {
	extensions map[string]struct{}
	maxSize    int64
	excludes   []string
}

// NewItemFilter compiles a filter from connector settings.
// Exclude patterns use path.Match syntax; invalid patterns are
// rejected at compile time rather than silently ignored.
func NewItemFilter(settings ConnectorSettings) (*ItemFilter, error) {
	f := &ItemFilter{maxSize: settings.MaxItemSizeBytes}

	if len(settings.IncludeExtensions) > 0 {
		f.extensions = make(map[string]struct{}, len(settings.IncludeExtensions))
		for _, ext := range settings.IncludeExtensions {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			f.extensions[ext] = struct{}{}
		}
	}

	for _, pattern := range settings.ExcludePatterns {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("%w: exclude pattern %q: %v", ErrInvalidInput, pattern, err)
		}
		f.excludes = append(f.excludes, pattern)
	}

	return f, nil
}

// Allow reports whether the item passes all filter rules.
func (f *ItemFilter) Allow(item *DiscoveredItem) bool {
	if f.extensions != nil {
		ext := strings.ToLower(path.Ext(item.Path))
		if _, ok := f.extensions[ext]; !ok {
			return false
		}
	}

	if f.maxSize > 0 && item.SizeBytes > f.maxSize {
		return false
	}

	for _, pattern := range f.excludes {
		if f.matches(pattern, item.Path) {
			return false
		}
	}

	return true
}

// Apply returns the items that pass the filter, preserving order.
func (f *ItemFilter) Apply(items []DiscoveredItem) []DiscoveredItem {
	kept := make([]DiscoveredItem, 0, len(items))
	for i := range items {
		if f.Allow(&items[i]) {
			kept = append(kept, items[i])
		}
	}
	return kept
}

// matches checks a glob pattern against the full path, the base name
// and every path segment, so "node_modules" style patterns exclude
// whole subtrees.
func (f *ItemFilter) matches(pattern, itemPath string) bool {
	itemPath = strings.TrimPrefix(itemPath, "/")
	if ok, _ := path.Match(pattern, itemPath); ok {
		return true
	}
	for _, segment := range strings.Split(itemPath, "/") {
		if ok, _ := path.Match(pattern, segment); ok {
			return true
		}
	}
	return false
}
