package connection

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "connections-list",
		Method:      http.MethodGet,
		Path:        "/api/connections",
		Summary:     "List a tenant's integration connections",
		Tags:        []string{"connections"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) disconnectOp() huma.Operation {
	return huma.Operation{
		OperationID: "connections-disconnect",
		Method:      http.MethodPost,
		Path:        "/api/connections/{provider}/disconnect",
		Summary:     "Disconnect an integration",
		Description: "Deactivates the connection and abandons its queued jobs.",
		Tags:        []string{"connections"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
