package oauth

import (
	"context"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"crmsync/internal/domain/connection"
	"crmsync/internal/domain/credential"
)

type Handler struct {
	credentials credential.Servicer
	connections connection.Servicer
	returnURL   string
	log         *slog.Logger
	middleware  huma.Middlewares
}

func NewHandler(credentials credential.Servicer, connections connection.Servicer, returnURL string, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		credentials: credentials,
		connections: connections,
		returnURL:   returnURL,
		log:         log,
		middleware:  mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.callbackOp(), h.callback)
}

// callback finishes the connect flow. State carries the tenant id set when
// the product UI started the authorize redirect.
func (h *Handler) callback(ctx context.Context, input *callbackInput) (*callbackOutput, error) {
	tenantID := input.State
	if tenantID == "" || input.Code == "" {
		return nil, huma.Error400BadRequest("code and state are required")
	}

	if _, err := h.credentials.Connect(ctx, tenantID, input.Provider, input.Code); err != nil {
		h.log.Error("oauth code exchange failed",
			"tenant_id", tenantID, "provider", input.Provider, "error", err)
		return h.redirect("error"), nil
	}

	if _, err := h.connections.Complete(ctx, tenantID, input.Provider, ""); err != nil {
		h.log.Error("connection activation failed",
			"tenant_id", tenantID, "provider", input.Provider, "error", err)
		return h.redirect("error"), nil
	}

	return h.redirect("connected"), nil
}

func (h *Handler) redirect(result string) *callbackOutput {
	location := h.returnURL
	if location == "" {
		location = "/"
	}
	return &callbackOutput{
		Status:   http.StatusFound,
		Location: location + "?integration=" + url.QueryEscape(result),
	}
}
