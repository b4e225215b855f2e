package apikey

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// APIKey guards the internal API. The host CRM is the only caller; it sends
// the shared key as a bearer token.
type APIKey struct {
	key string
	log *slog.Logger
}

func New(key string, log *slog.Logger) *APIKey {
	return &APIKey{
		key: key,
		log: log.With("component", "apikey_middleware"),
	}
}

func (a *APIKey) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		token := ctx.Header("Authorization")
		if len(token) < 7 || token[:7] != "Bearer " || !a.match(token[7:]) {
			a.log.Warn("internal API call rejected",
				"path", ctx.URL().Path, "remote_addr", ctx.RemoteAddr())
			ctx.SetStatus(http.StatusUnauthorized)
			ctx.SetHeader("Content-Type", "application/json")
			_ = json.NewEncoder(ctx.BodyWriter()).Encode(map[string]string{
				"error": "Unauthorized",
			})
			return
		}
		next(ctx)
	}
}

func (a *APIKey) match(token string) bool {
	if a.key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(a.key)) == 1
}
