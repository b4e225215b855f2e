package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"crmsync/internal/domain/connection"
	"crmsync/internal/domain/credential"
	"crmsync/internal/domain/mapping"
	"crmsync/internal/domain/queue"
	"crmsync/internal/local"
	"crmsync/internal/provider"
)

type handlerFunc func(ctx context.Context, job queue.Job) error

// ExecutorConfig tunes job execution.
type ExecutorConfig struct {
	// EchoWindow mirrors the detector's window: an outbound job for an entity
	// that just received an inbound apply completes without a network call.
	EchoWindow time.Duration
}

// Executor runs one claimed job through resolve -> call -> update-mapping.
// Terminal outcomes (retry scheduling, dead letters) are its responsibility;
// Execute only returns an error when recording the outcome itself failed.
type Executor struct {
	queue       queue.Servicer
	mappings    mapping.Servicer
	credentials credential.Servicer
	connections connection.Servicer
	providers   provider.Registry
	store       local.Store
	config      ExecutorConfig
	log         *slog.Logger

	// newExternalID generates the idempotency id sent with provider creates.
	newExternalID func() string

	handlers map[queue.JobType]handlerFunc
}

func NewExecutor(
	queueService queue.Servicer,
	mappings mapping.Servicer,
	credentials credential.Servicer,
	connections connection.Servicer,
	providers provider.Registry,
	store local.Store,
	config ExecutorConfig,
	log *slog.Logger,
) *Executor {
	e := &Executor{
		queue:         queueService,
		mappings:      mappings,
		credentials:   credentials,
		connections:   connections,
		providers:     providers,
		store:         store,
		config:        config,
		log:           log.With("component", "sync_worker"),
		newExternalID: uuid.NewString,
	}
	e.handlers = map[queue.JobType]handlerFunc{
		queue.JobTypeSyncContact:  e.handleOutbound,
		queue.JobTypeSyncDeal:     e.handleOutbound,
		queue.JobTypeSyncTask:     e.handleOutbound,
		queue.JobTypeSyncNote:     e.handleOutbound,
		queue.JobTypePushQuote:    e.handleOutbound,
		queue.JobTypeApplyInbound: e.handleInbound,
	}
	return e
}

// Execute dispatches a claimed job and records its terminal outcome. The job
// is already off the queue, so every path must end in done, a scheduled
// retry, or a dead letter.
func (e *Executor) Execute(ctx context.Context, job queue.Job) error {
	handler, ok := e.handlers[job.Type]
	if !ok {
		return e.queue.Fail(ctx, job, queue.ReasonValidation,
			fmt.Errorf("no handler for job type %q", job.Type))
	}

	if _, err := e.connections.Active(ctx, job.TenantID, job.Provider); err != nil {
		if errors.Is(err, connection.ErrNotConnected) {
			// Disconnect raced with the claim; drop the job the same way
			// Abandon drops the queued ones.
			return e.queue.Fail(ctx, job, queue.ReasonDisconnected, err)
		}
		return e.queue.Retry(ctx, job, err)
	}

	err := handler(ctx, job)
	if err == nil {
		if tErr := e.connections.TouchLastSync(ctx, job.TenantID, job.Provider); tErr != nil {
			e.log.Warn("failed to stamp last sync",
				"tenant_id", job.TenantID, "provider", job.Provider, "error", tErr)
		}
		e.log.Info("job done",
			"job_id", job.ID, "tenant_id", job.TenantID, "type", job.Type, "attempts", job.Attempts)
		return nil
	}
	return e.settleFailure(ctx, job, err)
}

func (e *Executor) settleFailure(ctx context.Context, job queue.Job, cause error) error {
	switch {
	case errors.Is(cause, credential.ErrAuthRevoked):
		// The credential service already deactivated the connection and
		// abandoned the queued jobs; this claimed one gets the same record.
		return e.queue.Fail(ctx, job, queue.ReasonAuthRevoked, cause)

	case provider.IsAuth(cause):
		// A token the refresher considered valid was rejected at the API.
		if dErr := e.connections.MarkAuthFailed(ctx, job.TenantID, job.Provider); dErr != nil {
			e.log.Error("failed to deactivate connection after provider auth error",
				"tenant_id", job.TenantID, "provider", job.Provider, "error", dErr)
		}
		return e.queue.Fail(ctx, job, queue.ReasonAuthRevoked, cause)

	case provider.IsValidation(cause):
		e.recordSyncError(ctx, job, cause)
		return e.queue.Fail(ctx, job, queue.ReasonValidation, cause)

	default:
		// Timeouts, 429s, 5xx and everything unclassified retry with backoff.
		// A Retry-After hint floors the delay so a rate-limited provider is
		// not re-hit on the early part of the backoff curve.
		var re *provider.RetryableError
		if errors.As(cause, &re) && re.RetryAfter > 0 {
			e.log.Debug("provider asked to slow down",
				"job_id", job.ID, "retry_after", re.RetryAfter)
			return e.queue.RetryWithDelay(ctx, job, re.RetryAfter, cause)
		}
		return e.queue.Retry(ctx, job, cause)
	}
}

// recordSyncError surfaces a terminal validation failure on the mapping row
// so the host UI can show a sync badge next to the entity.
func (e *Executor) recordSyncError(ctx context.Context, job queue.Job, cause error) {
	var p queue.OutboundPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil || p.LocalID == "" {
		return
	}
	if err := e.mappings.SetSyncError(ctx, job.TenantID, job.Provider, p.EntityType, p.LocalID, cause.Error()); err != nil &&
		!errors.Is(err, mapping.ErrNotFound) {
		e.log.Warn("failed to record sync error on mapping",
			"tenant_id", job.TenantID, "local_id", p.LocalID, "error", err)
	}
}

// handleOutbound pushes the current local state of one entity to the
// provider, creating the remote record when no mapping exists yet.
func (e *Executor) handleOutbound(ctx context.Context, job queue.Job) error {
	var p queue.OutboundPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return &provider.ValidationError{Body: fmt.Sprintf("malformed outbound payload: %v", err)}
	}

	echo, err := e.mappings.InEchoWindow(ctx, job.TenantID, job.Provider, p.EntityType, p.LocalID, e.config.EchoWindow)
	if err != nil {
		return fmt.Errorf("echo window check: %w", err)
	}
	if echo {
		// The triggering change was an inbound apply; pushing it back would
		// start the loop the window exists to break.
		e.log.Debug("outbound push skipped inside echo window",
			"job_id", job.ID, "tenant_id", job.TenantID,
			"entity_type", p.EntityType, "local_id", p.LocalID)
		return nil
	}

	// Always the current state, never the state at enqueue time.
	fields, err := e.store.ReadFields(ctx, job.TenantID, p.EntityType, p.LocalID)
	if err != nil {
		if errors.Is(err, local.ErrNotFound) {
			e.log.Info("local entity gone before sync, dropping job",
				"job_id", job.ID, "entity_type", p.EntityType, "local_id", p.LocalID)
			return nil
		}
		return fmt.Errorf("read local entity: %w", err)
	}

	token, err := e.credentials.GetValidToken(ctx, job.TenantID, job.Provider)
	if err != nil {
		return err
	}
	client, err := e.providers.Get(job.Provider)
	if err != nil {
		return &provider.ValidationError{Body: err.Error()}
	}

	m, err := e.mappings.ResolveLocal(ctx, job.TenantID, job.Provider, p.EntityType, p.LocalID)
	switch {
	case err == nil:
		if err := client.UpdateRecord(ctx, token, p.EntityType, m.RemoteID, fields); err != nil {
			return err
		}
		m.LastSyncedAt = time.Now()
		m.LastSyncError = ""
		if err := e.mappings.Upsert(ctx, m); err != nil {
			return fmt.Errorf("refresh mapping: %w", err)
		}
		return nil

	case errors.Is(err, mapping.ErrNotFound):
		remoteID, err := client.CreateRecord(ctx, token, p.EntityType, e.newExternalID(), fields)
		if err != nil {
			return err
		}
		if err := e.mappings.Upsert(ctx, &mapping.Mapping{
			TenantID:   job.TenantID,
			Provider:   job.Provider,
			EntityType: p.EntityType,
			LocalID:    p.LocalID,
			RemoteID:   remoteID,
		}); err != nil {
			return fmt.Errorf("store mapping for created record: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("resolve mapping: %w", err)
	}
}

// handleInbound fetches the remote record's current state and applies it to
// the local store, stamping the mapping so the resulting local change event
// is recognized as an echo.
func (e *Executor) handleInbound(ctx context.Context, job queue.Job) error {
	var p queue.InboundPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return &provider.ValidationError{Body: fmt.Sprintf("malformed inbound payload: %v", err)}
	}

	token, err := e.credentials.GetValidToken(ctx, job.TenantID, job.Provider)
	if err != nil {
		return err
	}
	client, err := e.providers.Get(job.Provider)
	if err != nil {
		return &provider.ValidationError{Body: err.Error()}
	}

	// The webhook body is only a notification; the fetch is the source of
	// truth, so collapsed events still apply the latest remote state.
	fields, err := client.FetchRecord(ctx, token, p.EntityType, p.RemoteID)
	if err != nil {
		return err
	}

	localID := ""
	m, err := e.mappings.ResolveRemote(ctx, job.TenantID, job.Provider, p.EntityType, p.RemoteID)
	switch {
	case err == nil:
		localID = m.LocalID
	case errors.Is(err, mapping.ErrNotFound):
		// First time we see this remote record; ApplyRemote creates locally.
	default:
		return fmt.Errorf("resolve mapping: %w", err)
	}

	localID, err = e.store.ApplyRemote(ctx, job.TenantID, p.EntityType, localID, fields)
	if err != nil {
		return fmt.Errorf("apply inbound change: %w", err)
	}

	if m == nil {
		if err := e.mappings.Upsert(ctx, &mapping.Mapping{
			TenantID:   job.TenantID,
			Provider:   job.Provider,
			EntityType: p.EntityType,
			LocalID:    localID,
			RemoteID:   p.RemoteID,
		}); err != nil {
			return fmt.Errorf("store mapping for inbound create: %w", err)
		}
	}
	// The stamp lands after ApplyRemote, so a synchronous local change event
	// fired by the apply can still enqueue an echo job. That job is claimed
	// later and dropped by the echo window re-check in handleOutbound.
	if err := e.mappings.MarkInbound(ctx, job.TenantID, job.Provider, p.EntityType, localID, p.OccurredAt); err != nil {
		return fmt.Errorf("mark inbound apply: %w", err)
	}
	return nil
}
