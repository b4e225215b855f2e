package queue

import "context"

// Repository is the durable job store. Claim is the concurrency-critical
// operation: it must hand each ready job to exactly one caller, skipping rows
// locked by a concurrent claim, and remove claimed rows in the same
// transaction (claim = destructive read).
type Repository interface {
	// Enqueue inserts a job, or merges into the unclaimed job with the same
	// (tenant, dedupe key): payload and not-before are refreshed, attempts
	// reset, the job id is unchanged.
	Enqueue(ctx context.Context, p EnqueueParams) (int64, error)

	// Claim atomically removes and returns up to limit ready jobs ordered by
	// priority desc, not-before asc, id asc. tenantID filters when non-empty.
	Claim(ctx context.Context, limit int, tenantID string) ([]Job, error)

	// Reinsert puts a claimed job back for retry, keeping its attempt count
	// and last error as set by the caller.
	Reinsert(ctx context.Context, job Job) (int64, error)

	// InsertDeadLetter records a terminal failure.
	InsertDeadLetter(ctx context.Context, dl DeadLetter) (int64, error)

	// AbandonTenant dead-letters every queued job for the tenant/provider and
	// returns how many were moved.
	AbandonTenant(ctx context.Context, tenantID, provider string, reason DeadLetterReason) (int, error)

	CountDeadLetters(ctx context.Context, tenantID string) (int, error)
	ListDeadLetters(ctx context.Context, tenantID string, limit int) ([]DeadLetter, error)
	GetDeadLetter(ctx context.Context, id int64) (*DeadLetter, error)
	DeleteDeadLetter(ctx context.Context, id int64) error
}
