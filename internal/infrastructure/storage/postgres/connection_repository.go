package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"crmsync/internal/domain/connection"
)

type ConnectionRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewConnectionRepository(pool *pgxpool.Pool, log *slog.Logger) *ConnectionRepository {
	return &ConnectionRepository{
		pool: pool,
		log:  log.With("component", "connection_repository"),
	}
}

const connectionColumns = `
	id, tenant_id, provider, status, remote_account_id, routing_token,
	COALESCE(last_sync_at, 'epoch'::timestamptz), created_at, updated_at`

func (r *ConnectionRepository) Get(ctx context.Context, tenantID, provider string) (*connection.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM integration_connections
		WHERE tenant_id = $1 AND provider = $2`

	row := r.pool.QueryRow(ctx, query, tenantID, provider)
	return r.scanConnection(row)
}

func (r *ConnectionRepository) GetByRoutingToken(ctx context.Context, provider, routingToken string) (*connection.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM integration_connections
		WHERE provider = $1 AND routing_token = $2`

	row := r.pool.QueryRow(ctx, query, provider, routingToken)
	return r.scanConnection(row)
}

func (r *ConnectionRepository) List(ctx context.Context, tenantID string) ([]connection.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM integration_connections
		WHERE tenant_id = $1
		ORDER BY provider`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		r.log.Error("failed to list connections", "tenant_id", tenantID, "error", err)
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var conns []connection.Connection
	for rows.Next() {
		c, err := r.scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, *c)
	}
	return conns, rows.Err()
}

func (r *ConnectionRepository) Upsert(ctx context.Context, c *connection.Connection) error {
	const query = `
		INSERT INTO integration_connections (tenant_id, provider, status,
		                                     remote_account_id, routing_token)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, provider)
		DO UPDATE SET status            = EXCLUDED.status,
		              remote_account_id = EXCLUDED.remote_account_id,
		              routing_token     = EXCLUDED.routing_token,
		              updated_at        = NOW()
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		c.TenantID, c.Provider, c.Status, c.RemoteAccountID, c.RoutingToken,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		r.log.Error("failed to upsert connection",
			"tenant_id", c.TenantID, "provider", c.Provider, "error", err)
		return fmt.Errorf("upsert connection: %w", err)
	}
	return nil
}

func (r *ConnectionRepository) SetStatus(ctx context.Context, tenantID, provider string, status connection.Status) error {
	const query = `
		UPDATE integration_connections
		SET status = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND provider = $2`

	result, err := r.pool.Exec(ctx, query, tenantID, provider, status)
	if err != nil {
		r.log.Error("failed to set connection status",
			"tenant_id", tenantID, "provider", provider, "error", err)
		return fmt.Errorf("set connection status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return connection.ErrNotFound
	}
	return nil
}

func (r *ConnectionRepository) TouchLastSync(ctx context.Context, tenantID, provider string, at time.Time) error {
	const query = `
		UPDATE integration_connections
		SET last_sync_at = $3
		WHERE tenant_id = $1 AND provider = $2`

	result, err := r.pool.Exec(ctx, query, tenantID, provider, at)
	if err != nil {
		return fmt.Errorf("touch last sync: %w", err)
	}
	if result.RowsAffected() == 0 {
		return connection.ErrNotFound
	}
	return nil
}

func (r *ConnectionRepository) scanConnection(row pgx.Row) (*connection.Connection, error) {
	var c connection.Connection
	err := row.Scan(
		&c.ID, &c.TenantID, &c.Provider, &c.Status, &c.RemoteAccountID,
		&c.RoutingToken, &c.LastSyncAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, connection.ErrNotFound
		}
		r.log.Error("failed to get connection", "error", err)
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return &c, nil
}
