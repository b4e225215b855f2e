package mapping

import (
	"context"
	"time"
)

type Repository interface {
	GetByLocal(ctx context.Context, tenantID, provider, entityType, localID string) (*Mapping, error)
	GetByRemote(ctx context.Context, tenantID, provider, entityType, remoteID string) (*Mapping, error)

	// Upsert creates or refreshes the mapping row keyed by
	// (tenant, provider, entity type, local id).
	Upsert(ctx context.Context, m *Mapping) error

	// TouchInbound stamps LastInboundAt and LastSeenRemoteModifiedAt after an
	// inbound change has been applied locally.
	TouchInbound(ctx context.Context, tenantID, provider, entityType, localID string, remoteModifiedAt, at time.Time) error

	SetSyncError(ctx context.Context, tenantID, provider, entityType, localID, syncError string) error
}
