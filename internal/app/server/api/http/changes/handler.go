package changes

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"crmsync/internal/domain/detector"
)

type Handler struct {
	service    detector.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service detector.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.notifyOp(), h.notify)
}

func (h *Handler) notify(ctx context.Context, input *notifyInput) (*notifyOutput, error) {
	enqueued, err := h.service.EntityChanged(ctx,
		input.Body.TenantID, input.Body.EntityType, input.Body.LocalID, input.Body.ChangedFields)
	if err != nil {
		if errors.Is(err, detector.ErrInvalidInput) {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		return nil, err
	}

	return &notifyOutput{
		Body: notifyResponse{Enqueued: enqueued},
	}, nil
}
