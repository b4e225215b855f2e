// Package local is the sync engine's only view of the host CRM. The host
// product owns the entity model; the engine reads current field values at
// job execution time and writes inbound changes back, nothing more.
package local

import "context"

var watchedEntityTypes = []string{"contact", "deal", "task", "note", "quote"}

// EntityTypes lists the entity types the engine syncs.
func EntityTypes() []string {
	return watchedEntityTypes
}

// EntityReader loads the current state of a local entity. The worker always
// re-reads at execution time so a burst of edits syncs the latest value,
// never a snapshot captured at enqueue time.
type EntityReader interface {
	ReadFields(ctx context.Context, tenantID, entityType, localID string) (map[string]any, error)
}

// EntityWriter applies an inbound remote change to the local store. An empty
// localID creates the entity; the returned id identifies the row either way.
type EntityWriter interface {
	ApplyRemote(ctx context.Context, tenantID, entityType, localID string, fields map[string]any) (string, error)
}

// Store combines both directions.
type Store interface {
	EntityReader
	EntityWriter
}
