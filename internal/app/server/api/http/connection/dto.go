package connection

import "time"

type listInput struct {
	TenantID string `query:"tenant"`
}

type listOutput struct {
	Body []connectionResponse
}

type connectionResponse struct {
	Provider        string    `json:"provider"`
	Status          string    `json:"status"`
	RemoteAccountID string    `json:"remoteAccountId,omitempty"`
	LastSyncAt      time.Time `json:"lastSyncAt,omitempty"`
}

type disconnectInput struct {
	Provider string `path:"provider"`
	Body     disconnectRequest
}

type disconnectRequest struct {
	TenantID string `json:"tenantId"`
}

type disconnectOutput struct {
	Body statusResponse
}

type statusResponse struct {
	Status string `json:"status" example:"Ok"`
}
