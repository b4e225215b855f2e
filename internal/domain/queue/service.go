package queue

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/exp/slog"
)

const (
	DefaultMaxAttempts = 10
	DefaultPriority    = 0

	claimLimitMax = 50
)

// ServiceConfig tunes retry backoff. Zero values fall back to the defaults
// used in production.
type ServiceConfig struct {
	BackoffBase time.Duration // first retry delay, default 30s
	BackoffCap  time.Duration // upper bound for any delay, default 1h
	Jitter      float64       // +- fraction applied to each delay, default 0.2
}

type Servicer interface {
	Enqueue(ctx context.Context, p EnqueueParams) (int64, error)
	Claim(ctx context.Context, limit int, tenantID string) ([]Job, error)
	Retry(ctx context.Context, job Job, cause error) error
	RetryWithDelay(ctx context.Context, job Job, minDelay time.Duration, cause error) error
	Fail(ctx context.Context, job Job, reason DeadLetterReason, cause error) error
	Abandon(ctx context.Context, tenantID, provider string, reason DeadLetterReason) (int, error)
	DeadLetterCount(ctx context.Context, tenantID string) (int, error)
	ListDeadLetters(ctx context.Context, tenantID string, limit int) ([]DeadLetter, error)
	Replay(ctx context.Context, deadLetterID int64) (int64, error)
}

type Service struct {
	repo   Repository
	log    *slog.Logger
	config ServiceConfig
	now    func() time.Time
}

func NewService(repo Repository, log *slog.Logger, config *ServiceConfig) *Service {
	cfg := ServiceConfig{
		BackoffBase: 30 * time.Second,
		BackoffCap:  time.Hour,
		Jitter:      0.2,
	}
	if config != nil {
		if config.BackoffBase > 0 {
			cfg.BackoffBase = config.BackoffBase
		}
		if config.BackoffCap > 0 {
			cfg.BackoffCap = config.BackoffCap
		}
		if config.Jitter > 0 {
			cfg.Jitter = config.Jitter
		}
	}
	return &Service{
		repo:   repo,
		log:    log.With("component", "queue_service"),
		config: cfg,
		now:    time.Now,
	}
}

func (s *Service) Enqueue(ctx context.Context, p EnqueueParams) (int64, error) {
	if p.TenantID == "" || p.Provider == "" {
		return 0, fmt.Errorf("%w: tenant and provider are required", ErrInvalidInput)
	}
	if !p.Type.Valid() {
		return 0, fmt.Errorf("%w: unknown job type %q", ErrInvalidInput, p.Type)
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.NotBefore.IsZero() {
		p.NotBefore = s.now()
	}

	id, err := s.repo.Enqueue(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("enqueue job: %w", err)
	}
	s.log.Debug("job enqueued",
		"job_id", id, "tenant_id", p.TenantID, "type", p.Type, "dedupe_key", p.DedupeKey)
	return id, nil
}

func (s *Service) Claim(ctx context.Context, limit int, tenantID string) ([]Job, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > claimLimitMax {
		limit = claimLimitMax
	}
	jobs, err := s.repo.Claim(ctx, limit, tenantID)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	return jobs, nil
}

// Retry re-inserts a claimed job with a delayed not-before, or dead-letters
// it when attempts are exhausted. The (k+1)th delay is strictly later than
// the kth regardless of jitter.
func (s *Service) Retry(ctx context.Context, job Job, cause error) error {
	return s.RetryWithDelay(ctx, job, 0, cause)
}

// RetryWithDelay is Retry with a floor on the delay. Providers that answer
// 429 with a Retry-After pass it here; the job waits for whichever is later,
// the backoff curve or the provider's hint.
func (s *Service) RetryWithDelay(ctx context.Context, job Job, minDelay time.Duration, cause error) error {
	job.Attempts++
	if cause != nil {
		job.LastError = cause.Error()
	}
	if job.Attempts >= job.MaxAttempts {
		return s.Fail(ctx, job, ReasonExhausted, cause)
	}

	delay := s.Backoff(job.Attempts)
	if minDelay > delay {
		delay = minDelay
	}
	job.NotBefore = s.now().Add(delay)
	if _, err := s.repo.Reinsert(ctx, job); err != nil {
		return fmt.Errorf("reinsert job %d: %w", job.ID, err)
	}
	s.log.Info("job scheduled for retry",
		"job_id", job.ID, "tenant_id", job.TenantID, "type", job.Type,
		"attempts", job.Attempts, "not_before", job.NotBefore)
	return nil
}

// Fail writes the terminal dead-letter record for a claimed job.
func (s *Service) Fail(ctx context.Context, job Job, reason DeadLetterReason, cause error) error {
	lastError := job.LastError
	if cause != nil {
		lastError = cause.Error()
	}
	dl := DeadLetter{
		JobID:     job.ID,
		TenantID:  job.TenantID,
		Provider:  job.Provider,
		Type:      job.Type,
		Payload:   job.Payload,
		Attempts:  job.Attempts,
		Reason:    reason,
		LastError: lastError,
	}
	if _, err := s.repo.InsertDeadLetter(ctx, dl); err != nil {
		return fmt.Errorf("dead-letter job %d: %w", job.ID, err)
	}
	s.log.Warn("job dead-lettered",
		"job_id", job.ID, "tenant_id", job.TenantID, "type", job.Type,
		"reason", reason, "error", lastError)
	return nil
}

func (s *Service) Abandon(ctx context.Context, tenantID, provider string, reason DeadLetterReason) (int, error) {
	n, err := s.repo.AbandonTenant(ctx, tenantID, provider, reason)
	if err != nil {
		return 0, fmt.Errorf("abandon jobs for %s/%s: %w", tenantID, provider, err)
	}
	if n > 0 {
		s.log.Info("abandoned queued jobs",
			"tenant_id", tenantID, "provider", provider, "count", n, "reason", reason)
	}
	return n, nil
}

func (s *Service) DeadLetterCount(ctx context.Context, tenantID string) (int, error) {
	return s.repo.CountDeadLetters(ctx, tenantID)
}

func (s *Service) ListDeadLetters(ctx context.Context, tenantID string, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListDeadLetters(ctx, tenantID, limit)
}

// Replay puts a dead-lettered job back on the queue with a fresh attempt
// budget and removes the dead letter.
func (s *Service) Replay(ctx context.Context, deadLetterID int64) (int64, error) {
	dl, err := s.repo.GetDeadLetter(ctx, deadLetterID)
	if err != nil {
		return 0, fmt.Errorf("load dead letter %d: %w", deadLetterID, err)
	}
	id, err := s.Enqueue(ctx, EnqueueParams{
		TenantID: dl.TenantID,
		Provider: dl.Provider,
		Type:     dl.Type,
		Payload:  dl.Payload,
	})
	if err != nil {
		return 0, err
	}
	if err := s.repo.DeleteDeadLetter(ctx, deadLetterID); err != nil {
		return 0, fmt.Errorf("delete dead letter %d: %w", deadLetterID, err)
	}
	s.log.Info("dead letter replayed", "dead_letter_id", deadLetterID, "job_id", id)
	return id, nil
}

// Backoff returns the delay before the given retry attempt (1-based). The
// base doubles per attempt up to the cap; jitter shifts each step by at most
// +-Jitter of itself, which keeps the sequence strictly increasing until the
// cap is reached.
func (s *Service) Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := s.config.BackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= s.config.BackoffCap {
			delay = s.config.BackoffCap
			break
		}
	}
	if s.config.Jitter > 0 && delay < s.config.BackoffCap {
		// Jitter below 1/3 keeps attempt k+1 strictly later than attempt k.
		span := float64(delay) * s.config.Jitter
		delay += time.Duration((rand.Float64()*2 - 1) * span)
	}
	return delay
}
