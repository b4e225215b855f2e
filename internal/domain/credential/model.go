package credential

import "time"

// Credential is the live OAuth credential for one (tenant, provider). There
// is at most one row per pair; a refresh or reconnect replaces the tokens
// wholesale and bumps Version, never mutates fields in place. Workers only
// ever see the access token through the refresher.
type Credential struct {
	ID           int64
	TenantID     string
	Provider     string
	AccessToken  string
	RefreshToken string
	// AuxTokens carries provider-specific extras (e.g. a REST instance URL
	// or a portal id) returned alongside the token pair.
	AuxTokens map[string]string
	ExpiresAt time.Time
	Version   int
	UpdatedAt time.Time
}
