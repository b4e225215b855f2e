package detector

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"crmsync/internal/domain/connection"
	"crmsync/internal/domain/mapping"
	"crmsync/internal/domain/queue"
)

// jobTypeByEntity maps each watched entity type to its outbound job type.
var jobTypeByEntity = map[string]queue.JobType{
	"contact": queue.JobTypeSyncContact,
	"deal":    queue.JobTypeSyncDeal,
	"task":    queue.JobTypeSyncTask,
	"note":    queue.JobTypeSyncNote,
	"quote":   queue.JobTypePushQuote,
}

type Servicer interface {
	EntityChanged(ctx context.Context, tenantID, entityType, localID string, changedFields []string) (int, error)
}

type ServiceConfig struct {
	// EchoWindow suppresses outbound jobs for entities that just received an
	// inbound apply, breaking the local->remote->webhook->local cycle.
	EchoWindow time.Duration
	// WatchedFields limits which field changes trigger a sync per entity type.
	// Bookkeeping columns like updatedAt never appear here.
	WatchedFields map[string][]string
	// Priorities overrides the default job priority per entity type.
	Priorities map[string]int
}

// DefaultWatchedFields is the built-in watch list, overridable from config.
func DefaultWatchedFields() map[string][]string {
	return map[string][]string{
		"contact": {"email", "first_name", "last_name", "phone", "company"},
		"deal":    {"title", "amount", "stage", "close_date", "contact_id"},
		"task":    {"title", "due_at", "status", "assignee_id"},
		"note":    {"body", "entity_ref"},
		"quote":   {"total", "status", "line_items", "valid_until"},
	}
}

// Service is the write-path hook of the host CRM: the entity services call
// EntityChanged after every mutation, and the detector decides whether that
// mutation becomes a sync job.
type Service struct {
	connections connection.Servicer
	mappings    mapping.Servicer
	queue       queue.Servicer
	config      ServiceConfig
	log         *slog.Logger
}

func NewService(connections connection.Servicer, mappings mapping.Servicer, queueService queue.Servicer, config ServiceConfig, log *slog.Logger) *Service {
	if config.WatchedFields == nil {
		config.WatchedFields = DefaultWatchedFields()
	}
	return &Service{
		connections: connections,
		mappings:    mappings,
		queue:       queueService,
		config:      config,
		log:         log.With("component", "change_detector"),
	}
}

// EntityChanged inspects one local mutation and enqueues at most one outbound
// job per connected provider. Returns how many jobs were enqueued. A tenant
// without a connection is a silent no-op, not an error.
func (s *Service) EntityChanged(ctx context.Context, tenantID, entityType, localID string, changedFields []string) (int, error) {
	jobType, ok := jobTypeByEntity[entityType]
	if !ok {
		return 0, fmt.Errorf("%w: entity type %q is not synced", ErrInvalidInput, entityType)
	}
	if tenantID == "" || localID == "" {
		return 0, fmt.Errorf("%w: tenant id and local id are required", ErrInvalidInput)
	}

	// An empty changedFields slice means a create, which is always relevant.
	if len(changedFields) > 0 && !s.anyWatched(entityType, changedFields) {
		return 0, nil
	}

	conns, err := s.connections.List(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("list connections: %w", err)
	}

	payload, err := queue.OutboundPayload{EntityType: entityType, LocalID: localID}.Marshal()
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, conn := range conns {
		if conn.Status != connection.StatusConnected {
			continue
		}

		echo, err := s.mappings.InEchoWindow(ctx, tenantID, conn.Provider, entityType, localID, s.config.EchoWindow)
		if err != nil {
			return enqueued, fmt.Errorf("echo window check: %w", err)
		}
		if echo {
			s.log.Debug("change suppressed inside echo window",
				"tenant_id", tenantID, "provider", conn.Provider,
				"entity_type", entityType, "local_id", localID)
			continue
		}

		if _, err := s.queue.Enqueue(ctx, queue.EnqueueParams{
			TenantID:  tenantID,
			Provider:  conn.Provider,
			Type:      jobType,
			Priority:  s.config.Priorities[entityType],
			Payload:   payload,
			DedupeKey: queue.OutboundDedupeKey(conn.Provider, entityType, localID),
		}); err != nil {
			return enqueued, fmt.Errorf("enqueue outbound job: %w", err)
		}
		enqueued++
	}

	if enqueued > 0 {
		s.log.Info("local change queued for sync",
			"tenant_id", tenantID, "entity_type", entityType,
			"local_id", localID, "jobs", enqueued)
	}
	return enqueued, nil
}

func (s *Service) anyWatched(entityType string, changedFields []string) bool {
	watched := s.config.WatchedFields[entityType]
	for _, changed := range changedFields {
		for _, field := range watched {
			if changed == field {
				return true
			}
		}
	}
	return false
}
