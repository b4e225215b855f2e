package connection

import "time"

type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Connection is the per (tenant, provider) integration state. Rows are
// deactivated on disconnect or repeated auth failure but never deleted, so
// the history stays available for audit.
type Connection struct {
	ID              int64
	TenantID        string
	Provider        string
	Status          Status
	RemoteAccountID string
	// RoutingToken is the opaque token embedded in the tenant's webhook URL.
	// It stands in for the tenant id so a leaked URL cannot enumerate tenants.
	RoutingToken string
	LastSyncAt   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
