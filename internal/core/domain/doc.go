// Package domain contains the core business entities for driftline.
// These types have no external dependencies and represent the
// ubiquitous language of the ingestion engine: discovered items,
// canonical records, connector state, cursors and filters.
package domain
