package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"
	"golang.org/x/oauth2"

	"crmsync/internal/domain/connection"
)

// RefreshMargin is how much validity must remain before a token is handed
// out without refreshing.
const RefreshMargin = 5 * time.Minute

type Servicer interface {
	// GetValidToken returns an access token with at least RefreshMargin of
	// validity left, refreshing transparently when needed. Callers never see
	// the refresh token.
	GetValidToken(ctx context.Context, tenantID, provider string) (string, error)

	// Connect exchanges an authorization code and stores the resulting
	// credential wholesale, replacing whatever was there.
	Connect(ctx context.Context, tenantID, provider, code string) (*oauth2.Token, error)

	// Aux returns a provider-specific auxiliary token stored with the
	// credential (empty string when absent).
	Aux(ctx context.Context, tenantID, provider, key string) (string, error)
}

// Service owns the credential lifecycle. Refreshes are serialized per
// (tenant, provider) with a keyed mutex, and the persist is a compare-and-
// swap on the row version, so two racing workers cannot both exchange the
// same refresh token; the loser re-reads the winner's fresh credential.
type Service struct {
	repo        Repository
	exchanger   Exchanger
	connections connection.Servicer
	log         *slog.Logger
	now         func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(repo Repository, exchanger Exchanger, connections connection.Servicer, log *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		exchanger:   exchanger,
		connections: connections,
		log:         log.With("component", "credential_service"),
		now:         time.Now,
		locks:       make(map[string]*sync.Mutex),
	}
}

func (s *Service) GetValidToken(ctx context.Context, tenantID, provider string) (string, error) {
	cred, err := s.repo.Get(ctx, tenantID, provider)
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	if s.fresh(cred) {
		return cred.AccessToken, nil
	}

	lock := s.keyLock(tenantID + "/" + provider)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: a concurrent caller may have refreshed while
	// we waited, in which case the exchange must not be repeated.
	cred, err = s.repo.Get(ctx, tenantID, provider)
	if err != nil {
		return "", fmt.Errorf("reload credential: %w", err)
	}
	if s.fresh(cred) {
		return cred.AccessToken, nil
	}

	return s.refresh(ctx, cred)
}

func (s *Service) refresh(ctx context.Context, cred *Credential) (string, error) {
	tok, err := s.exchanger.Refresh(ctx, cred.Provider, cred.RefreshToken)
	if err != nil {
		if isAuthRejection(err) {
			s.log.Warn("refresh token rejected, disconnecting integration",
				"tenant_id", cred.TenantID, "provider", cred.Provider, "error", err)
			if dErr := s.connections.MarkAuthFailed(ctx, cred.TenantID, cred.Provider); dErr != nil {
				s.log.Error("failed to deactivate connection after auth rejection",
					"tenant_id", cred.TenantID, "provider", cred.Provider, "error", dErr)
			}
			// The tokens are dead; keeping the row would only let later calls
			// re-run the rejected exchange. Reconnect stores a fresh one.
			if dErr := s.repo.Delete(ctx, cred.TenantID, cred.Provider); dErr != nil && !errors.Is(dErr, ErrNotFound) {
				s.log.Error("failed to remove revoked credential",
					"tenant_id", cred.TenantID, "provider", cred.Provider, "error", dErr)
			}
			return "", fmt.Errorf("%w: %v", ErrAuthRevoked, err)
		}
		return "", fmt.Errorf("refresh token exchange: %w", err)
	}

	next := *cred
	next.AccessToken = tok.AccessToken
	next.ExpiresAt = tok.Expiry
	if tok.RefreshToken != "" {
		// Providers that rotate refresh tokens invalidate the old one, so
		// the rotated value must be persisted before the token is used.
		next.RefreshToken = tok.RefreshToken
	}

	swapped, err := s.repo.ReplaceIfVersion(ctx, &next, cred.Version)
	if err != nil {
		return "", fmt.Errorf("persist refreshed credential: %w", err)
	}
	if !swapped {
		// Lost the version race (another process refreshed between our read
		// and write). Their credential is the live one.
		current, err := s.repo.Get(ctx, cred.TenantID, cred.Provider)
		if err != nil {
			return "", fmt.Errorf("reload credential after version race: %w", err)
		}
		return current.AccessToken, nil
	}

	s.log.Debug("access token refreshed",
		"tenant_id", cred.TenantID, "provider", cred.Provider, "expires_at", next.ExpiresAt)
	return next.AccessToken, nil
}

func (s *Service) Connect(ctx context.Context, tenantID, provider, code string) (*oauth2.Token, error) {
	tok, err := s.exchanger.ExchangeCode(ctx, provider, code)
	if err != nil {
		return nil, fmt.Errorf("authorization code exchange: %w", err)
	}

	cred := &Credential{
		TenantID:     tenantID,
		Provider:     provider,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if err := s.repo.Upsert(ctx, cred); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}
	s.log.Info("credential stored", "tenant_id", tenantID, "provider", provider)
	return tok, nil
}

func (s *Service) Aux(ctx context.Context, tenantID, provider, key string) (string, error) {
	cred, err := s.repo.Get(ctx, tenantID, provider)
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	return cred.AuxTokens[key], nil
}

func (s *Service) fresh(cred *Credential) bool {
	return cred.ExpiresAt.After(s.now().Add(RefreshMargin))
}

func (s *Service) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}
