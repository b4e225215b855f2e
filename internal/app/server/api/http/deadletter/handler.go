package deadletter

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"crmsync/internal/domain/queue"
)

type Handler struct {
	service    queue.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service queue.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.retryOp(), h.retry)
}

func (h *Handler) list(ctx context.Context, input *listInput) (*listOutput, error) {
	total, err := h.service.DeadLetterCount(ctx, input.TenantID)
	if err != nil {
		return nil, err
	}
	letters, err := h.service.ListDeadLetters(ctx, input.TenantID, input.Limit)
	if err != nil {
		return nil, err
	}

	body := listResponse{Total: total, Letters: make([]deadLetterResponse, 0, len(letters))}
	for _, dl := range letters {
		body.Letters = append(body.Letters, deadLetterResponse{
			ID:        dl.ID,
			JobID:     dl.JobID,
			TenantID:  dl.TenantID,
			Provider:  dl.Provider,
			Type:      string(dl.Type),
			Payload:   dl.Payload,
			Attempts:  dl.Attempts,
			Reason:    string(dl.Reason),
			LastError: dl.LastError,
			CreatedAt: dl.CreatedAt,
		})
	}
	return &listOutput{Body: body}, nil
}

func (h *Handler) retry(ctx context.Context, input *retryInput) (*retryOutput, error) {
	jobID, err := h.service.Replay(ctx, input.ID)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			return nil, huma.Error404NotFound("dead letter not found")
		}
		return nil, err
	}
	return &retryOutput{
		Body: retryResponse{JobID: jobID, Status: "Ok"},
	}, nil
}
