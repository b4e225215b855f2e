package connection

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"crmsync/internal/domain/connection"
)

type Handler struct {
	service    connection.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service connection.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.disconnectOp(), h.disconnect)
}

func (h *Handler) list(ctx context.Context, input *listInput) (*listOutput, error) {
	conns, err := h.service.List(ctx, input.TenantID)
	if err != nil {
		return nil, err
	}

	body := make([]connectionResponse, 0, len(conns))
	for _, c := range conns {
		body = append(body, connectionResponse{
			Provider:        c.Provider,
			Status:          string(c.Status),
			RemoteAccountID: c.RemoteAccountID,
			LastSyncAt:      c.LastSyncAt,
		})
	}
	return &listOutput{Body: body}, nil
}

func (h *Handler) disconnect(ctx context.Context, input *disconnectInput) (*disconnectOutput, error) {
	if input.Body.TenantID == "" {
		return nil, huma.Error422UnprocessableEntity("tenantId is required")
	}

	if err := h.service.Disconnect(ctx, input.Body.TenantID, input.Provider); err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			return nil, huma.Error404NotFound("connection not found")
		}
		return nil, err
	}
	return &disconnectOutput{
		Body: statusResponse{Status: "Ok"},
	}, nil
}
