package changes

type notifyInput struct {
	Body notifyRequest
}

type notifyRequest struct {
	TenantID      string   `json:"tenantId" doc:"Tenant whose entity changed"`
	EntityType    string   `json:"entityType" example:"contact"`
	LocalID       string   `json:"localId"`
	ChangedFields []string `json:"changedFields,omitempty" doc:"Empty on create"`
}

type notifyOutput struct {
	Body notifyResponse
}

type notifyResponse struct {
	Enqueued int `json:"enqueued" doc:"Jobs enqueued, one per connected provider"`
}
