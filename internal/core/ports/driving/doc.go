// Package driving defines the inbound ports exposed by the engine to
// callers: the connector service and its progress/snapshot types.
package driving
