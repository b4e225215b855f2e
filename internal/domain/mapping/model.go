package mapping

import "time"

// Mapping is the bidirectional correspondence between a local entity and its
// remote counterpart. Per (tenant, provider, entity type) a local id maps to
// at most one remote id and vice versa; the unique indexes in the store
// enforce both directions.
type Mapping struct {
	ID                       int64
	TenantID                 string
	Provider                 string
	EntityType               string
	LocalID                  string
	RemoteID                 string
	LastSyncedAt             time.Time
	LastSeenRemoteModifiedAt time.Time
	// LastInboundAt is set whenever an inbound change is applied locally.
	// It anchors the echo window that keeps the two systems from
	// re-triggering each other.
	LastInboundAt time.Time
	LastSyncError string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
