// Package driven defines the outbound ports the engine depends on:
// source adapters, the ingestion pipeline, and state stores.
// Implementations live under internal/adapters/driven and
// internal/connectors.
package driven
