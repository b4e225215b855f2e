package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"crmsync/internal/domain/webhook"
)

type WebhookRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewWebhookRepository(pool *pgxpool.Pool, log *slog.Logger) *WebhookRepository {
	return &WebhookRepository{
		pool: pool,
		log:  log.With("component", "webhook_repository"),
	}
}

func (r *WebhookRepository) InsertIfAbsent(ctx context.Context, d *webhook.Delivery) (bool, error) {
	// DO NOTHING plus RETURNING makes the duplicate check and the insert one
	// atomic statement: a redelivered id yields zero rows, never an error.
	const query = `
		INSERT INTO webhook_deliveries (tenant_id, provider, delivery_id, event_type,
		                                payload_hash, occurred_at, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, provider, delivery_id) DO NOTHING
		RETURNING id`

	err := r.pool.QueryRow(ctx, query,
		d.TenantID, d.Provider, d.DeliveryID, d.EventType,
		d.PayloadHash, d.OccurredAt, d.ReceivedAt,
	).Scan(&d.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		r.log.Error("failed to record webhook delivery",
			"tenant_id", d.TenantID, "delivery_id", d.DeliveryID, "error", err)
		return false, fmt.Errorf("record webhook delivery: %w", err)
	}
	return true, nil
}

func (r *WebhookRepository) MarkProcessed(ctx context.Context, id int64, at time.Time) error {
	const query = `UPDATE webhook_deliveries SET processed_at = $2 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		r.log.Error("failed to mark delivery processed", "delivery_row_id", id, "error", err)
		return fmt.Errorf("mark delivery processed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("mark delivery processed: row %d not found", id)
	}
	return nil
}
