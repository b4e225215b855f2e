package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"crmsync/internal/domain/queue"
)

type QueueRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewQueueRepository(pool *pgxpool.Pool, log *slog.Logger) *QueueRepository {
	return &QueueRepository{
		pool: pool,
		log:  log.With("component", "queue_repository"),
	}
}

func (r *QueueRepository) Enqueue(ctx context.Context, p queue.EnqueueParams) (int64, error) {
	// The partial unique index on (tenant_id, dedupe_key) turns a repeated
	// enqueue into a merge: payload and schedule refresh, attempts reset,
	// the job id stays the same.
	const query = `
		INSERT INTO sync_jobs (tenant_id, provider, type, priority, not_before,
		                       attempts, max_attempts, last_error, payload, dedupe_key)
		VALUES ($1, $2, $3, $4, $5, 0, $6, '', $7, NULLIF($8, ''))
		ON CONFLICT (tenant_id, dedupe_key) WHERE dedupe_key IS NOT NULL
		DO UPDATE SET payload      = EXCLUDED.payload,
		              priority     = EXCLUDED.priority,
		              not_before   = EXCLUDED.not_before,
		              max_attempts = EXCLUDED.max_attempts,
		              attempts     = 0,
		              last_error   = ''
		RETURNING id`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		p.TenantID, p.Provider, p.Type, p.Priority, p.NotBefore,
		p.MaxAttempts, p.Payload, p.DedupeKey,
	).Scan(&id)
	if err != nil {
		r.log.Error("failed to enqueue job",
			"tenant_id", p.TenantID, "type", p.Type, "error", err)
		return 0, fmt.Errorf("enqueue job: %w", err)
	}
	return id, nil
}

func (r *QueueRepository) Claim(ctx context.Context, limit int, tenantID string) ([]queue.Job, error) {
	// Claim is a destructive read: select with SKIP LOCKED so concurrent
	// claimers never wait on or double-claim a row, then delete the claimed
	// rows inside the same transaction.
	const selectQuery = `
		SELECT id, tenant_id, provider, type, priority, not_before,
		       attempts, max_attempts, last_error, payload,
		       COALESCE(dedupe_key, ''), created_at
		FROM sync_jobs
		WHERE not_before <= NOW()
		  AND ($2 = '' OR tenant_id = $2)
		ORDER BY priority DESC, not_before ASC, id ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`

	const deleteQuery = `DELETE FROM sync_jobs WHERE id = ANY($1)`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, selectQuery, limit, tenantID)
	if err != nil {
		r.log.Error("failed to select claimable jobs", "error", err)
		return nil, fmt.Errorf("select jobs: %w", err)
	}

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, len(jobs))
	for i, job := range jobs {
		ids[i] = job.ID
	}
	if _, err := tx.Exec(ctx, deleteQuery, ids); err != nil {
		r.log.Error("failed to remove claimed jobs", "error", err)
		return nil, fmt.Errorf("delete claimed jobs: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return jobs, nil
}

func (r *QueueRepository) Reinsert(ctx context.Context, job queue.Job) (int64, error) {
	// A fresh enqueue may have landed on the same dedupe key while this job
	// was claimed; keep the earlier schedule so the retry never delays it.
	const query = `
		INSERT INTO sync_jobs (tenant_id, provider, type, priority, not_before,
		                       attempts, max_attempts, last_error, payload, dedupe_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''))
		ON CONFLICT (tenant_id, dedupe_key) WHERE dedupe_key IS NOT NULL
		DO UPDATE SET not_before = LEAST(sync_jobs.not_before, EXCLUDED.not_before),
		              last_error = EXCLUDED.last_error
		RETURNING id`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		job.TenantID, job.Provider, job.Type, job.Priority, job.NotBefore,
		job.Attempts, job.MaxAttempts, job.LastError, job.Payload, job.DedupeKey,
	).Scan(&id)
	if err != nil {
		r.log.Error("failed to reinsert job",
			"job_id", job.ID, "tenant_id", job.TenantID, "error", err)
		return 0, fmt.Errorf("reinsert job: %w", err)
	}
	return id, nil
}

func (r *QueueRepository) InsertDeadLetter(ctx context.Context, dl queue.DeadLetter) (int64, error) {
	const query = `
		INSERT INTO sync_dead_letters (job_id, tenant_id, provider, type,
		                               payload, attempts, reason, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		dl.JobID, dl.TenantID, dl.Provider, dl.Type,
		dl.Payload, dl.Attempts, dl.Reason, dl.LastError,
	).Scan(&id)
	if err != nil {
		r.log.Error("failed to insert dead letter",
			"job_id", dl.JobID, "tenant_id", dl.TenantID, "error", err)
		return 0, fmt.Errorf("insert dead letter: %w", err)
	}
	return id, nil
}

func (r *QueueRepository) AbandonTenant(ctx context.Context, tenantID, provider string, reason queue.DeadLetterReason) (int, error) {
	const query = `
		WITH moved AS (
			DELETE FROM sync_jobs
			WHERE tenant_id = $1 AND provider = $2
			RETURNING id, tenant_id, provider, type, payload, attempts, last_error
		)
		INSERT INTO sync_dead_letters (job_id, tenant_id, provider, type,
		                               payload, attempts, reason, last_error)
		SELECT id, tenant_id, provider, type, payload, attempts, $3, last_error
		FROM moved`

	result, err := r.pool.Exec(ctx, query, tenantID, provider, reason)
	if err != nil {
		r.log.Error("failed to abandon jobs",
			"tenant_id", tenantID, "provider", provider, "error", err)
		return 0, fmt.Errorf("abandon jobs: %w", err)
	}
	return int(result.RowsAffected()), nil
}

func (r *QueueRepository) CountDeadLetters(ctx context.Context, tenantID string) (int, error) {
	const query = `SELECT COUNT(*) FROM sync_dead_letters WHERE $1 = '' OR tenant_id = $1`

	var n int
	if err := r.pool.QueryRow(ctx, query, tenantID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count dead letters: %w", err)
	}
	return n, nil
}

func (r *QueueRepository) ListDeadLetters(ctx context.Context, tenantID string, limit int) ([]queue.DeadLetter, error) {
	const query = `
		SELECT id, job_id, tenant_id, provider, type, payload, attempts, reason, last_error, created_at
		FROM sync_dead_letters
		WHERE $1 = '' OR tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, tenantID, limit)
	if err != nil {
		r.log.Error("failed to list dead letters", "tenant_id", tenantID, "error", err)
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var letters []queue.DeadLetter
	for rows.Next() {
		var dl queue.DeadLetter
		if err := rows.Scan(
			&dl.ID, &dl.JobID, &dl.TenantID, &dl.Provider, &dl.Type,
			&dl.Payload, &dl.Attempts, &dl.Reason, &dl.LastError, &dl.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		letters = append(letters, dl)
	}
	return letters, rows.Err()
}

func (r *QueueRepository) GetDeadLetter(ctx context.Context, id int64) (*queue.DeadLetter, error) {
	const query = `
		SELECT id, job_id, tenant_id, provider, type, payload, attempts, reason, last_error, created_at
		FROM sync_dead_letters
		WHERE id = $1`

	var dl queue.DeadLetter
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&dl.ID, &dl.JobID, &dl.TenantID, &dl.Provider, &dl.Type,
		&dl.Payload, &dl.Attempts, &dl.Reason, &dl.LastError, &dl.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, queue.ErrNotFound
		}
		r.log.Error("failed to get dead letter", "dead_letter_id", id, "error", err)
		return nil, fmt.Errorf("get dead letter: %w", err)
	}
	return &dl, nil
}

func (r *QueueRepository) DeleteDeadLetter(ctx context.Context, id int64) error {
	const query = `DELETE FROM sync_dead_letters WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		r.log.Error("failed to delete dead letter", "dead_letter_id", id, "error", err)
		return fmt.Errorf("delete dead letter: %w", err)
	}
	if result.RowsAffected() == 0 {
		return queue.ErrNotFound
	}
	return nil
}

func scanJobs(rows pgx.Rows) ([]queue.Job, error) {
	defer rows.Close()

	var jobs []queue.Job
	for rows.Next() {
		var job queue.Job
		if err := rows.Scan(
			&job.ID, &job.TenantID, &job.Provider, &job.Type, &job.Priority,
			&job.NotBefore, &job.Attempts, &job.MaxAttempts, &job.LastError,
			&job.Payload, &job.DedupeKey, &job.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
