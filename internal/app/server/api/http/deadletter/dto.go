package deadletter

import (
	"encoding/json"
	"time"
)

type listInput struct {
	TenantID string `query:"tenant"`
	Limit    int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
}

type listOutput struct {
	Body listResponse
}

type listResponse struct {
	Total   int                  `json:"total" doc:"Dead letters for the tenant"`
	Letters []deadLetterResponse `json:"letters"`
}

type deadLetterResponse struct {
	ID        int64           `json:"id"`
	JobID     int64           `json:"jobId"`
	TenantID  string          `json:"tenantId"`
	Provider  string          `json:"provider"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Reason    string          `json:"reason"`
	LastError string          `json:"lastError,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type retryInput struct {
	ID int64 `path:"id"`
}

type retryOutput struct {
	Body retryResponse
}

type retryResponse struct {
	JobID  int64  `json:"jobId" doc:"Id of the re-enqueued job"`
	Status string `json:"status" example:"Ok"`
}
