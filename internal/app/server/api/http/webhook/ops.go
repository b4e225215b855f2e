package webhook

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) ingestOp() huma.Operation {
	return huma.Operation{
		OperationID: "webhooks-ingest",
		Method:      http.MethodPost,
		Path:        "/webhooks/{provider}/{routingToken}",
		Summary:     "Receive a provider webhook delivery",
		Description: "Validates the routing token and signature, deduplicates by delivery id, and enqueues the inbound sync job.",
		Tags:        []string{"webhooks"},
		Middlewares: h.middleware,
	}
}
