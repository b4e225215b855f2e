package deadletter

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "deadletters-list",
		Method:      http.MethodGet,
		Path:        "/api/deadletters",
		Summary:     "List dead-lettered sync jobs",
		Tags:        []string{"deadletters"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) retryOp() huma.Operation {
	return huma.Operation{
		OperationID: "deadletters-retry",
		Method:      http.MethodPost,
		Path:        "/api/deadletters/{id}/retry",
		Summary:     "Re-enqueue a dead-lettered job",
		Description: "Puts the job back on the queue with a fresh attempt budget and removes the dead letter.",
		Tags:        []string{"deadletters"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
