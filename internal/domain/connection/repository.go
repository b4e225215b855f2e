package connection

import (
	"context"
	"time"
)

type Repository interface {
	Get(ctx context.Context, tenantID, provider string) (*Connection, error)
	GetByRoutingToken(ctx context.Context, provider, routingToken string) (*Connection, error)
	List(ctx context.Context, tenantID string) ([]Connection, error)

	// Upsert creates the connection or reactivates the existing row, keeping
	// its routing token stable across reconnects.
	Upsert(ctx context.Context, c *Connection) error

	SetStatus(ctx context.Context, tenantID, provider string, status Status) error
	TouchLastSync(ctx context.Context, tenantID, provider string, at time.Time) error
}
