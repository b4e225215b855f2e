package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"crmsync/internal/domain/connection"
	"crmsync/internal/domain/queue"
)

// IngestResult is the outcome of one delivery.
type IngestResult string

const (
	ResultAccepted  IngestResult = "accepted"
	ResultDuplicate IngestResult = "duplicate"
)

// IngestParams is everything the HTTP layer extracts from one provider
// delivery. Payload stays opaque; EntityType and RemoteID are the minimal
// envelope fields needed for job dedupe.
type IngestParams struct {
	Provider     string
	RoutingToken string
	DeliveryID   string
	EventType    string
	EntityType   string
	RemoteID     string
	OccurredAt   time.Time
	Signature    string
	Payload      []byte
}

type Servicer interface {
	Ingest(ctx context.Context, p IngestParams) (IngestResult, error)
}

// Service turns provider webhook deliveries into inbound sync jobs exactly
// once per delivery id.
type Service struct {
	repo        Repository
	connections connection.Servicer
	queue       queue.Servicer
	// secrets holds the per-provider HMAC keys for signature validation.
	// A provider without a configured secret skips the check.
	secrets map[string]string
	log     *slog.Logger
	now     func() time.Time
}

func NewService(repo Repository, connections connection.Servicer, queueService queue.Servicer, secrets map[string]string, log *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		connections: connections,
		queue:       queueService,
		secrets:     secrets,
		log:         log.With("component", "webhook_service"),
		now:         time.Now,
	}
}

func (s *Service) Ingest(ctx context.Context, p IngestParams) (IngestResult, error) {
	if p.DeliveryID == "" || p.EntityType == "" || p.RemoteID == "" {
		return "", fmt.Errorf("%w: delivery id, entity type and remote id are required", ErrInvalidInput)
	}

	conn, err := s.connections.ByRoutingToken(ctx, p.Provider, p.RoutingToken)
	if err != nil {
		return "", ErrUnknownToken
	}

	if secret := s.secrets[p.Provider]; secret != "" {
		if !validSignature(secret, p.Payload, p.Signature) {
			s.log.Warn("webhook signature rejected",
				"tenant_id", conn.TenantID, "provider", p.Provider, "delivery_id", p.DeliveryID)
			return "", ErrBadSignature
		}
	}

	hash := sha256.Sum256(p.Payload)
	delivery := &Delivery{
		TenantID:    conn.TenantID,
		Provider:    p.Provider,
		DeliveryID:  p.DeliveryID,
		EventType:   p.EventType,
		PayloadHash: hex.EncodeToString(hash[:]),
		OccurredAt:  p.OccurredAt,
		ReceivedAt:  s.now(),
	}
	inserted, err := s.repo.InsertIfAbsent(ctx, delivery)
	if err != nil {
		return "", fmt.Errorf("record delivery: %w", err)
	}
	if !inserted {
		// Provider-side at-least-once redelivery; already handled.
		s.log.Debug("duplicate webhook delivery dropped",
			"tenant_id", conn.TenantID, "provider", p.Provider, "delivery_id", p.DeliveryID)
		return ResultDuplicate, nil
	}

	payload, err := queue.InboundPayload{
		EntityType: p.EntityType,
		RemoteID:   p.RemoteID,
		OccurredAt: p.OccurredAt,
		Event:      p.Payload,
	}.Marshal()
	if err != nil {
		return "", err
	}

	if _, err := s.queue.Enqueue(ctx, queue.EnqueueParams{
		TenantID:  conn.TenantID,
		Provider:  p.Provider,
		Type:      queue.JobTypeApplyInbound,
		Payload:   payload,
		DedupeKey: queue.InboundDedupeKey(p.Provider, p.EntityType, p.RemoteID),
	}); err != nil {
		return "", fmt.Errorf("enqueue inbound job: %w", err)
	}

	if err := s.repo.MarkProcessed(ctx, delivery.ID, s.now()); err != nil {
		// The job is queued; a missing processed stamp only affects
		// reporting, so log and keep the accepted result.
		s.log.Warn("failed to stamp delivery processed",
			"delivery_id", p.DeliveryID, "error", err)
	}

	s.log.Info("webhook accepted",
		"tenant_id", conn.TenantID, "provider", p.Provider,
		"delivery_id", p.DeliveryID, "entity_type", p.EntityType, "remote_id", p.RemoteID)
	return ResultAccepted, nil
}

func validSignature(secret string, payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
