// Package services implements the engine's core behaviour: discovery,
// batch ingestion, connector sessions and the sync scheduler. Services
// depend only on the domain types and the ports; all vendor and
// infrastructure specifics live behind driven adapters.
package services
