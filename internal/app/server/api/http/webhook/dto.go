package webhook

import "time"

type ingestInput struct {
	Provider     string `path:"provider" doc:"Provider name, e.g. hubspot"`
	RoutingToken string `path:"routingToken" doc:"Opaque per-tenant routing token"`
	DeliveryID   string `header:"X-Delivery-Id" doc:"Provider delivery id, unique per event"`
	EventType    string `header:"X-Event-Type" doc:"Provider event type"`
	Signature    string `header:"X-Signature" doc:"HMAC-SHA256 of the body, hex encoded"`
	RawBody      []byte
}

// envelope is the minimal shape every provider body must carry; the rest of
// the body stays opaque.
type envelope struct {
	EntityType string    `json:"entityType"`
	RemoteID   string    `json:"remoteId"`
	OccurredAt time.Time `json:"occurredAt"`
}

type ingestOutput struct {
	Body ingestResponse
}

type ingestResponse struct {
	Status string `json:"status" example:"accepted" doc:"accepted or duplicate"`
}
