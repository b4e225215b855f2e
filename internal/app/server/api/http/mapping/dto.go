package mapping

import "time"

type findInput struct {
	EntityType string `path:"entityType"`
	LocalID    string `path:"localId"`
	TenantID   string `query:"tenant"`
	Provider   string `query:"provider"`
}

type findOutput struct {
	Body findResponse
}

type findResponse struct {
	RemoteID      string    `json:"remoteId"`
	LastSyncedAt  time.Time `json:"lastSyncedAt"`
	LastInboundAt time.Time `json:"lastInboundAt,omitempty"`
	LastSyncError string    `json:"lastSyncError,omitempty"`
}
