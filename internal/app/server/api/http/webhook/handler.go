package webhook

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"crmsync/internal/domain/webhook"
)

type Handler struct {
	service    webhook.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service webhook.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.ingestOp(), h.ingest)
}

func (h *Handler) ingest(ctx context.Context, input *ingestInput) (*ingestOutput, error) {
	var env envelope
	if err := json.Unmarshal(input.RawBody, &env); err != nil {
		return nil, huma.Error400BadRequest("malformed webhook body")
	}

	result, err := h.service.Ingest(ctx, webhook.IngestParams{
		Provider:     input.Provider,
		RoutingToken: input.RoutingToken,
		DeliveryID:   input.DeliveryID,
		EventType:    input.EventType,
		EntityType:   env.EntityType,
		RemoteID:     env.RemoteID,
		OccurredAt:   env.OccurredAt,
		Signature:    input.Signature,
		Payload:      input.RawBody,
	})
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrUnknownToken), errors.Is(err, webhook.ErrBadSignature):
			return nil, huma.Error401Unauthorized("Unauthorized")
		case errors.Is(err, webhook.ErrInvalidInput):
			return nil, huma.Error400BadRequest(err.Error())
		default:
			return nil, err
		}
	}

	return &ingestOutput{
		Body: ingestResponse{Status: string(result)},
	}, nil
}
