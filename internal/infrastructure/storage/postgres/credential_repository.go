package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"crmsync/internal/app/server/crypto"
	"crmsync/internal/domain/credential"
)

// CredentialRepository stores OAuth credentials with the access and refresh
// tokens sealed by the token cipher, so a database dump never exposes them.
type CredentialRepository struct {
	pool   *pgxpool.Pool
	cipher *crypto.TokenCipher
	log    *slog.Logger
}

func NewCredentialRepository(pool *pgxpool.Pool, cipher *crypto.TokenCipher, log *slog.Logger) *CredentialRepository {
	return &CredentialRepository{
		pool:   pool,
		cipher: cipher,
		log:    log.With("component", "credential_repository"),
	}
}

func (r *CredentialRepository) Get(ctx context.Context, tenantID, provider string) (*credential.Credential, error) {
	const query = `
		SELECT id, tenant_id, provider, access_token, refresh_token,
		       aux_tokens, expires_at, version, updated_at
		FROM credentials
		WHERE tenant_id = $1 AND provider = $2`

	var c credential.Credential
	err := r.pool.QueryRow(ctx, query, tenantID, provider).Scan(
		&c.ID, &c.TenantID, &c.Provider, &c.AccessToken, &c.RefreshToken,
		&c.AuxTokens, &c.ExpiresAt, &c.Version, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, credential.ErrNotFound
		}
		r.log.Error("failed to get credential",
			"tenant_id", tenantID, "provider", provider, "error", err)
		return nil, fmt.Errorf("get credential: %w", err)
	}
	if err := r.openTokens(&c); err != nil {
		r.log.Error("failed to unseal credential",
			"tenant_id", tenantID, "provider", provider, "error", err)
		return nil, fmt.Errorf("unseal credential: %w", err)
	}
	return &c, nil
}

func (r *CredentialRepository) Upsert(ctx context.Context, c *credential.Credential) error {
	// The reconnect path replaces the row wholesale; the version keeps
	// incrementing so in-flight ReplaceIfVersion calls against the old
	// credential lose.
	const query = `
		INSERT INTO credentials (tenant_id, provider, access_token, refresh_token,
		                         aux_tokens, expires_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, 1)
		ON CONFLICT (tenant_id, provider)
		DO UPDATE SET access_token  = EXCLUDED.access_token,
		              refresh_token = EXCLUDED.refresh_token,
		              aux_tokens    = EXCLUDED.aux_tokens,
		              expires_at    = EXCLUDED.expires_at,
		              version       = credentials.version + 1,
		              updated_at    = NOW()
		RETURNING id, version, updated_at`

	access, refresh, err := r.sealTokens(c)
	if err != nil {
		return fmt.Errorf("seal credential: %w", err)
	}
	aux := c.AuxTokens
	if aux == nil {
		aux = map[string]string{}
	}
	err = r.pool.QueryRow(ctx, query,
		c.TenantID, c.Provider, access, refresh, aux, c.ExpiresAt,
	).Scan(&c.ID, &c.Version, &c.UpdatedAt)
	if err != nil {
		r.log.Error("failed to upsert credential",
			"tenant_id", c.TenantID, "provider", c.Provider, "error", err)
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) ReplaceIfVersion(ctx context.Context, c *credential.Credential, expectedVersion int) (bool, error) {
	// Compare-and-swap on the version column. Zero rows means a concurrent
	// refresh committed first; the caller re-reads the winner's tokens.
	const query = `
		UPDATE credentials
		SET access_token  = $1,
		    refresh_token = $2,
		    aux_tokens    = $3,
		    expires_at    = $4,
		    version       = version + 1,
		    updated_at    = NOW()
		WHERE tenant_id = $5 AND provider = $6 AND version = $7
		RETURNING version, updated_at`

	access, refresh, err := r.sealTokens(c)
	if err != nil {
		return false, fmt.Errorf("seal credential: %w", err)
	}
	aux := c.AuxTokens
	if aux == nil {
		aux = map[string]string{}
	}
	err = r.pool.QueryRow(ctx, query,
		access, refresh, aux, c.ExpiresAt,
		c.TenantID, c.Provider, expectedVersion,
	).Scan(&c.Version, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		r.log.Error("failed to replace credential",
			"tenant_id", c.TenantID, "provider", c.Provider, "error", err)
		return false, fmt.Errorf("replace credential: %w", err)
	}
	return true, nil
}

func (r *CredentialRepository) Delete(ctx context.Context, tenantID, provider string) error {
	const query = `DELETE FROM credentials WHERE tenant_id = $1 AND provider = $2`

	result, err := r.pool.Exec(ctx, query, tenantID, provider)
	if err != nil {
		r.log.Error("failed to delete credential",
			"tenant_id", tenantID, "provider", provider, "error", err)
		return fmt.Errorf("delete credential: %w", err)
	}
	if result.RowsAffected() == 0 {
		return credential.ErrNotFound
	}
	return nil
}

func (r *CredentialRepository) sealTokens(c *credential.Credential) (access, refresh string, err error) {
	access, err = r.cipher.Seal(c.AccessToken)
	if err != nil {
		return "", "", err
	}
	refresh, err = r.cipher.Seal(c.RefreshToken)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (r *CredentialRepository) openTokens(c *credential.Credential) error {
	access, err := r.cipher.Open(c.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := r.cipher.Open(c.RefreshToken)
	if err != nil {
		return err
	}
	c.AccessToken = access
	c.RefreshToken = refresh
	return nil
}
