package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"crmsync/internal/domain/queue"
)

type Servicer interface {
	Complete(ctx context.Context, tenantID, provider, remoteAccountID string) (*Connection, error)
	Active(ctx context.Context, tenantID, provider string) (*Connection, error)
	ByRoutingToken(ctx context.Context, provider, routingToken string) (*Connection, error)
	List(ctx context.Context, tenantID string) ([]Connection, error)
	Disconnect(ctx context.Context, tenantID, provider string) error
	MarkAuthFailed(ctx context.Context, tenantID, provider string) error
	TouchLastSync(ctx context.Context, tenantID, provider string) error
}

type Service struct {
	repo  Repository
	queue queue.Servicer
	log   *slog.Logger
	now   func() time.Time
}

func NewService(repo Repository, queueService queue.Servicer, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		queue: queueService,
		log:   log.With("component", "connection_service"),
		now:   time.Now,
	}
}

// Complete activates the connection after a successful OAuth exchange. The
// routing token of an existing row survives reconnects so the provider-side
// webhook subscription keeps working.
func (s *Service) Complete(ctx context.Context, tenantID, provider, remoteAccountID string) (*Connection, error) {
	if tenantID == "" || provider == "" {
		return nil, fmt.Errorf("%w: tenant and provider are required", ErrInvalidInput)
	}

	conn, err := s.repo.Get(ctx, tenantID, provider)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load connection: %w", err)
	}
	if conn == nil {
		conn = &Connection{
			TenantID:     tenantID,
			Provider:     provider,
			RoutingToken: uuid.NewString(),
		}
	}
	conn.Status = StatusConnected
	conn.RemoteAccountID = remoteAccountID

	if err := s.repo.Upsert(ctx, conn); err != nil {
		return nil, fmt.Errorf("save connection: %w", err)
	}
	s.log.Info("integration connected",
		"tenant_id", tenantID, "provider", provider, "remote_account_id", remoteAccountID)
	return conn, nil
}

// Active returns the connection only when it is in the connected state.
func (s *Service) Active(ctx context.Context, tenantID, provider string) (*Connection, error) {
	conn, err := s.repo.Get(ctx, tenantID, provider)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotConnected
		}
		return nil, fmt.Errorf("load connection: %w", err)
	}
	if conn.Status != StatusConnected {
		return nil, ErrNotConnected
	}
	return conn, nil
}

func (s *Service) ByRoutingToken(ctx context.Context, provider, routingToken string) (*Connection, error) {
	if routingToken == "" {
		return nil, ErrNotFound
	}
	return s.repo.GetByRoutingToken(ctx, provider, routingToken)
}

func (s *Service) List(ctx context.Context, tenantID string) ([]Connection, error) {
	return s.repo.List(ctx, tenantID)
}

// Disconnect deactivates the connection and abandons its queued jobs so they
// do not keep firing against revoked credentials.
func (s *Service) Disconnect(ctx context.Context, tenantID, provider string) error {
	return s.deactivate(ctx, tenantID, provider, queue.ReasonDisconnected)
}

// MarkAuthFailed is called when the provider rejects the refresh token.
func (s *Service) MarkAuthFailed(ctx context.Context, tenantID, provider string) error {
	return s.deactivate(ctx, tenantID, provider, queue.ReasonAuthRevoked)
}

func (s *Service) deactivate(ctx context.Context, tenantID, provider string, reason queue.DeadLetterReason) error {
	if err := s.repo.SetStatus(ctx, tenantID, provider, StatusDisconnected); err != nil {
		return fmt.Errorf("deactivate connection: %w", err)
	}
	n, err := s.queue.Abandon(ctx, tenantID, provider, reason)
	if err != nil {
		return fmt.Errorf("abandon queued jobs: %w", err)
	}
	s.log.Info("integration disconnected",
		"tenant_id", tenantID, "provider", provider, "reason", reason, "abandoned_jobs", n)
	return nil
}

func (s *Service) TouchLastSync(ctx context.Context, tenantID, provider string) error {
	return s.repo.TouchLastSync(ctx, tenantID, provider, s.now())
}
