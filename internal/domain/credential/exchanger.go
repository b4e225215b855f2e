package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// Exchanger performs the OAuth token round trips. Split out so the refresher
// can be tested without a live authorization server.
type Exchanger interface {
	// ExchangeCode trades an authorization code for a token pair.
	ExchangeCode(ctx context.Context, provider, code string) (*oauth2.Token, error)

	// Refresh trades a refresh token for a fresh token pair.
	Refresh(ctx context.Context, provider, refreshToken string) (*oauth2.Token, error)
}

// OAuthExchanger is the production Exchanger built from per-provider
// oauth2.Configs.
type OAuthExchanger struct {
	configs map[string]*oauth2.Config
}

func NewOAuthExchanger(configs map[string]*oauth2.Config) *OAuthExchanger {
	return &OAuthExchanger{configs: configs}
}

func (e *OAuthExchanger) ExchangeCode(ctx context.Context, provider, code string) (*oauth2.Token, error) {
	conf, ok := e.configs[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return conf.Exchange(ctx, code)
}

func (e *OAuthExchanger) Refresh(ctx context.Context, provider, refreshToken string) (*oauth2.Token, error) {
	conf, ok := e.configs[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return src.Token()
}

// isAuthRejection reports whether the provider definitively rejected the
// refresh token (as opposed to a transient failure worth retrying).
func isAuthRejection(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		code := retrieveErr.Response.StatusCode
		return code == http.StatusBadRequest || code == http.StatusUnauthorized || code == http.StatusForbidden
	}
	return false
}
