package webhook

import (
	"context"
	"time"
)

type Repository interface {
	// InsertIfAbsent atomically records the delivery. Returns false without
	// modifying anything when (tenant, provider, delivery id) already exists.
	InsertIfAbsent(ctx context.Context, d *Delivery) (bool, error)

	MarkProcessed(ctx context.Context, id int64, at time.Time) error
}
