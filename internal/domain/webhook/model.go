package webhook

import "time"

// Delivery is one webhook delivery attempt recorded for idempotency. The
// delivery id is unique per (tenant, provider): a redelivery hits the unique
// index and is dropped even when the first processing crashed before the
// processed stamp was written.
type Delivery struct {
	ID          int64
	TenantID    string
	Provider    string
	DeliveryID  string
	EventType   string
	PayloadHash string
	OccurredAt  time.Time
	ReceivedAt  time.Time
	ProcessedAt *time.Time
}
