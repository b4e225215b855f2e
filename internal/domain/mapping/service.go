package mapping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"
)

type Servicer interface {
	ResolveLocal(ctx context.Context, tenantID, provider, entityType, localID string) (*Mapping, error)
	ResolveRemote(ctx context.Context, tenantID, provider, entityType, remoteID string) (*Mapping, error)
	Upsert(ctx context.Context, m *Mapping) error
	MarkInbound(ctx context.Context, tenantID, provider, entityType, localID string, remoteModifiedAt time.Time) error
	SetSyncError(ctx context.Context, tenantID, provider, entityType, localID, syncError string) error
	InEchoWindow(ctx context.Context, tenantID, provider, entityType, localID string, window time.Duration) (bool, error)
}

type Service struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With("component", "mapping_service"),
		now:  time.Now,
	}
}

func (s *Service) ResolveLocal(ctx context.Context, tenantID, provider, entityType, localID string) (*Mapping, error) {
	if localID == "" {
		return nil, fmt.Errorf("%w: local id is required", ErrInvalidInput)
	}
	return s.repo.GetByLocal(ctx, tenantID, provider, entityType, localID)
}

func (s *Service) ResolveRemote(ctx context.Context, tenantID, provider, entityType, remoteID string) (*Mapping, error) {
	if remoteID == "" {
		return nil, fmt.Errorf("%w: remote id is required", ErrInvalidInput)
	}
	return s.repo.GetByRemote(ctx, tenantID, provider, entityType, remoteID)
}

func (s *Service) Upsert(ctx context.Context, m *Mapping) error {
	if m.TenantID == "" || m.Provider == "" || m.EntityType == "" || m.LocalID == "" || m.RemoteID == "" {
		return fmt.Errorf("%w: mapping key fields are required", ErrInvalidInput)
	}
	if m.LastSyncedAt.IsZero() {
		m.LastSyncedAt = s.now()
	}
	if err := s.repo.Upsert(ctx, m); err != nil {
		return fmt.Errorf("upsert mapping: %w", err)
	}
	return nil
}

// MarkInbound records that an inbound change was just applied to the local
// entity. Subsequent local-change events for this entity are treated as
// echoes until the window expires.
func (s *Service) MarkInbound(ctx context.Context, tenantID, provider, entityType, localID string, remoteModifiedAt time.Time) error {
	if err := s.repo.TouchInbound(ctx, tenantID, provider, entityType, localID, remoteModifiedAt, s.now()); err != nil {
		return fmt.Errorf("touch inbound: %w", err)
	}
	return nil
}

func (s *Service) SetSyncError(ctx context.Context, tenantID, provider, entityType, localID, syncError string) error {
	return s.repo.SetSyncError(ctx, tenantID, provider, entityType, localID, syncError)
}

// InEchoWindow reports whether the most recent inbound apply for the entity
// happened within the window. A missing mapping is never an echo.
func (s *Service) InEchoWindow(ctx context.Context, tenantID, provider, entityType, localID string, window time.Duration) (bool, error) {
	m, err := s.repo.GetByLocal(ctx, tenantID, provider, entityType, localID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("resolve mapping for echo check: %w", err)
	}
	if m.LastInboundAt.IsZero() {
		return false, nil
	}
	return s.now().Sub(m.LastInboundAt) < window, nil
}
