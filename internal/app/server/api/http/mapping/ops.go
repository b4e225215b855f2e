package mapping

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) findOp() huma.Operation {
	return huma.Operation{
		OperationID: "mappings-find",
		Method:      http.MethodGet,
		Path:        "/api/mappings/{entityType}/{localId}",
		Summary:     "Look up the remote counterpart of a local entity",
		Description: "Used by the host UI for sync status badges.",
		Tags:        []string{"mappings"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
