package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"crmsync/internal/domain/mapping"
)

type MappingRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewMappingRepository(pool *pgxpool.Pool, log *slog.Logger) *MappingRepository {
	return &MappingRepository{
		pool: pool,
		log:  log.With("component", "mapping_repository"),
	}
}

const mappingColumns = `
	id, tenant_id, provider, entity_type, local_id, remote_id,
	last_synced_at, last_seen_remote_modified_at, last_inbound_at,
	last_sync_error, created_at, updated_at`

func (r *MappingRepository) GetByLocal(ctx context.Context, tenantID, provider, entityType, localID string) (*mapping.Mapping, error) {
	query := `
		SELECT ` + mappingColumns + `
		FROM entity_mappings
		WHERE tenant_id = $1 AND provider = $2 AND entity_type = $3 AND local_id = $4`

	row := r.pool.QueryRow(ctx, query, tenantID, provider, entityType, localID)
	return r.scanMapping(row, "local_id", localID)
}

func (r *MappingRepository) GetByRemote(ctx context.Context, tenantID, provider, entityType, remoteID string) (*mapping.Mapping, error) {
	query := `
		SELECT ` + mappingColumns + `
		FROM entity_mappings
		WHERE tenant_id = $1 AND provider = $2 AND entity_type = $3 AND remote_id = $4`

	row := r.pool.QueryRow(ctx, query, tenantID, provider, entityType, remoteID)
	return r.scanMapping(row, "remote_id", remoteID)
}

func (r *MappingRepository) Upsert(ctx context.Context, m *mapping.Mapping) error {
	const query = `
		INSERT INTO entity_mappings (tenant_id, provider, entity_type, local_id, remote_id,
		                             last_synced_at, last_seen_remote_modified_at,
		                             last_inbound_at, last_sync_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, provider, entity_type, local_id)
		DO UPDATE SET remote_id                    = EXCLUDED.remote_id,
		              last_synced_at               = EXCLUDED.last_synced_at,
		              last_seen_remote_modified_at = EXCLUDED.last_seen_remote_modified_at,
		              last_inbound_at              = EXCLUDED.last_inbound_at,
		              last_sync_error              = EXCLUDED.last_sync_error,
		              updated_at                   = NOW()
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		m.TenantID, m.Provider, m.EntityType, m.LocalID, m.RemoteID,
		m.LastSyncedAt, m.LastSeenRemoteModifiedAt, m.LastInboundAt, m.LastSyncError,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		r.log.Error("failed to upsert mapping",
			"tenant_id", m.TenantID, "entity_type", m.EntityType,
			"local_id", m.LocalID, "error", err)
		return fmt.Errorf("upsert mapping: %w", err)
	}
	return nil
}

func (r *MappingRepository) TouchInbound(ctx context.Context, tenantID, provider, entityType, localID string, remoteModifiedAt, at time.Time) error {
	const query = `
		UPDATE entity_mappings
		SET last_inbound_at              = $5,
		    last_seen_remote_modified_at = $6,
		    last_sync_error              = '',
		    updated_at                   = NOW()
		WHERE tenant_id = $1 AND provider = $2 AND entity_type = $3 AND local_id = $4`

	result, err := r.pool.Exec(ctx, query, tenantID, provider, entityType, localID, at, remoteModifiedAt)
	if err != nil {
		r.log.Error("failed to touch inbound",
			"tenant_id", tenantID, "local_id", localID, "error", err)
		return fmt.Errorf("touch inbound: %w", err)
	}
	if result.RowsAffected() == 0 {
		return mapping.ErrNotFound
	}
	return nil
}

func (r *MappingRepository) SetSyncError(ctx context.Context, tenantID, provider, entityType, localID, syncError string) error {
	const query = `
		UPDATE entity_mappings
		SET last_sync_error = $5, updated_at = NOW()
		WHERE tenant_id = $1 AND provider = $2 AND entity_type = $3 AND local_id = $4`

	result, err := r.pool.Exec(ctx, query, tenantID, provider, entityType, localID, syncError)
	if err != nil {
		r.log.Error("failed to set sync error",
			"tenant_id", tenantID, "local_id", localID, "error", err)
		return fmt.Errorf("set sync error: %w", err)
	}
	if result.RowsAffected() == 0 {
		return mapping.ErrNotFound
	}
	return nil
}

func (r *MappingRepository) scanMapping(row pgx.Row, key, value string) (*mapping.Mapping, error) {
	var m mapping.Mapping
	err := row.Scan(
		&m.ID, &m.TenantID, &m.Provider, &m.EntityType, &m.LocalID, &m.RemoteID,
		&m.LastSyncedAt, &m.LastSeenRemoteModifiedAt, &m.LastInboundAt,
		&m.LastSyncError, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mapping.ErrNotFound
		}
		r.log.Error("failed to get mapping", key, value, "error", err)
		return nil, fmt.Errorf("get mapping: %w", err)
	}
	return &m, nil
}
