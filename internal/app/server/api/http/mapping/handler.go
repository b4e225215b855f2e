package mapping

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"crmsync/internal/domain/mapping"
)

type Handler struct {
	service    mapping.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service mapping.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.findOp(), h.find)
}

func (h *Handler) find(ctx context.Context, input *findInput) (*findOutput, error) {
	m, err := h.service.ResolveLocal(ctx, input.TenantID, input.Provider, input.EntityType, input.LocalID)
	if err != nil {
		if errors.Is(err, mapping.ErrNotFound) {
			return nil, huma.Error404NotFound("mapping not found")
		}
		return nil, err
	}

	return &findOutput{
		Body: findResponse{
			RemoteID:      m.RemoteID,
			LastSyncedAt:  m.LastSyncedAt,
			LastInboundAt: m.LastInboundAt,
			LastSyncError: m.LastSyncError,
		},
	}, nil
}
