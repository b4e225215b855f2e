package credential

import "context"

type Repository interface {
	Get(ctx context.Context, tenantID, provider string) (*Credential, error)

	// Upsert replaces the credential wholesale (reconnect path) and bumps
	// the version, so in-flight ReplaceIfVersion calls against the old
	// tokens lose.
	Upsert(ctx context.Context, c *Credential) error

	// ReplaceIfVersion swaps the stored tokens only when the row still has
	// the expected version. Returns false when a concurrent refresh won.
	ReplaceIfVersion(ctx context.Context, c *Credential, expectedVersion int) (bool, error)

	Delete(ctx context.Context, tenantID, provider string) error
}
