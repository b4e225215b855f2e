package changes

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) notifyOp() huma.Operation {
	return huma.Operation{
		OperationID: "changes-notify",
		Method:      http.MethodPost,
		Path:        "/api/changes",
		Summary:     "Notify the sync engine of a local entity change",
		Description: "Called from the host CRM's entity write path. A tenant without a connected integration is a no-op.",
		Tags:        []string{"changes"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
