package oauth

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) callbackOp() huma.Operation {
	return huma.Operation{
		OperationID:   "oauth-callback",
		Method:        http.MethodGet,
		Path:          "/oauth/{provider}/callback",
		Summary:       "OAuth authorization-code callback",
		Description:   "Exchanges the code, stores the credential, activates the integration connection, and redirects to the product UI.",
		Tags:          []string{"oauth"},
		DefaultStatus: http.StatusFound,
		Middlewares:   h.middleware,
	}
}
