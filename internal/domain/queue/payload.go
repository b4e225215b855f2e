package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// OutboundPayload is carried by outbound job types. Only the local id is
// stored; the worker re-reads the entity's current state at execution time.
type OutboundPayload struct {
	EntityType string `json:"entityType"`
	LocalID    string `json:"localId"`
}

// InboundPayload is carried by apply-inbound jobs. Event is the provider's
// webhook body, kept opaque for the provider-specific field extraction done
// by the worker.
type InboundPayload struct {
	EntityType string          `json:"entityType"`
	RemoteID   string          `json:"remoteId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Event      json.RawMessage `json:"event,omitempty"`
}

func (p OutboundPayload) Marshal() (json.RawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal outbound payload: %w", err)
	}
	return raw, nil
}

func (p InboundPayload) Marshal() (json.RawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal inbound payload: %w", err)
	}
	return raw, nil
}

// OutboundDedupeKey collapses repeated local edits of one entity into a
// single pending job.
func OutboundDedupeKey(provider, entityType, localID string) string {
	return fmt.Sprintf("out:%s:%s:%s", provider, entityType, localID)
}

// InboundDedupeKey collapses repeated webhook events about one remote record.
func InboundDedupeKey(provider, entityType, remoteID string) string {
	return fmt.Sprintf("in:%s:%s:%s", provider, entityType, remoteID)
}
