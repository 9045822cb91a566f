package domain

import "time"

// RawAttachment is the opaque vendor payload carried alongside a
// discovered item. Engine logic never inspects the payload; it is
// passed through to the pipeline as-is under the vendor tag.
type RawAttachment struct {
	// Vendor identifies the adapter that produced the payload.
	Vendor string

	// Payload is the vendor-specific data, opaque to the engine.
	Payload []byte
}

// DiscoveredItem is a single remote item found during discovery.
// Identity is the (SourceID, ID) pair. Items are immutable once
// discovered within a cycle.
type DiscoveredItem struct {
	// ID is the vendor-assigned identifier for the item.
	ID string

	// SourceID links to the source the item was discovered from.
	SourceID string

	// DisplayName is the human-readable name.
	DisplayName string

	// Path is the item's location within the source hierarchy.
	Path string

	// SizeBytes is the item size, or 0 when the vendor does not report one.
	SizeBytes int64

	// ContentType is the MIME type, empty when unknown.
	ContentType string

	// ModifiedAt is the last modification time reported by the vendor.
	ModifiedAt time.Time

	// Attachment is the opaque vendor payload.
	Attachment RawAttachment
}

// Identity returns the (sourceID, id) identity key for the item.
func (i *DiscoveredItem) Identity() ItemIdentity {
	return ItemIdentity{SourceID: i.SourceID, ID: i.ID}
}

// ItemIdentity uniquely identifies a discovered item across cycles.
type ItemIdentity struct {
	SourceID string
	ID       string
}

// ItemDetail is the enriched form of a discovered item, fetched
// per-item during ingestion.
type ItemDetail struct {
	// Item is the discovered item the detail belongs to.
	Item DiscoveredItem

	// Content is the item's raw content.
	Content []byte

	// Metadata contains vendor-reported key-value pairs.
	Metadata map[string]any
}

// CanonicalRecord is the normalised shape submitted to the ingestion
// pipeline. All vendor items are mapped into this shape before
// submission.
type CanonicalRecord struct {
	// ID is the record identifier, derived from the item ID.
	ID string

	// SourceID links to the producing source.
	SourceID string

	// SourceType identifies the adapter type (e.g. "filesystem").
	SourceType string

	// Title is the human-readable title.
	Title string

	// Content is the text content.
	Content string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// ChunkSize is the requested downstream chunk size in characters.
	ChunkSize int

	// ChunkOverlap is the requested overlap between chunks.
	ChunkOverlap int
}

// IngestionBatch is a bounded group of canonical records submitted
// together to the pipeline.
type IngestionBatch struct {
	// BatchIndex is the zero-based position of this batch in the run.
	BatchIndex int

	// TotalBatches is the total number of batches in the run.
	TotalBatches int

	// Records holds at most the configured batch size of records.
	Records []CanonicalRecord
}
