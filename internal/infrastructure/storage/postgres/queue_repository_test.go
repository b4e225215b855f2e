package postgres

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"crmsync/internal/app/server/config"
	"crmsync/internal/domain/queue"
	"crmsync/internal/infrastructure/migration"
)

// newTestPool connects to the database named by TEST_DATABASE_URI and applies
// the migrations. The integration tests are skipped when the variable is
// unset, so the unit suite stays runnable without Postgres.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	uri := os.Getenv("TEST_DATABASE_URI")
	if uri == "" {
		t.Skip("TEST_DATABASE_URI is not set, skipping database integration test")
	}

	cfg := &config.Config{}
	cfg.DB.DatabaseURI = uri
	cfg.DB.Migrations = "../../../../migrations"
	require.NoError(t, migration.NewMigration(cfg, migration.DefaultEngine).Up())

	pool, err := pgxpool.New(context.Background(), uri)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// Each test works under its own tenant id, so runs never interfere with each
// other or with leftovers from earlier runs.
func testTenant() string {
	return "t-" + uuid.NewString()
}

func TestQueueRepository_Enqueue_DedupeMergesIntoOneJob(t *testing.T) {
	pool := newTestPool(t)
	repo := NewQueueRepository(pool, slog.Default())
	ctx := context.Background()
	tenant := testTenant()

	first := queue.EnqueueParams{
		TenantID:    tenant,
		Provider:    "hubspot",
		Type:        queue.JobTypeSyncContact,
		Payload:     json.RawMessage(`{"localId":"c-1","rev":1}`),
		DedupeKey:   "hubspot/contact/c-1",
		NotBefore:   time.Now(),
		MaxAttempts: 10,
	}
	id1, err := repo.Enqueue(ctx, first)
	require.NoError(t, err)

	second := first
	second.Payload = json.RawMessage(`{"localId":"c-1","rev":2}`)
	second.Priority = 5
	id2, err := repo.Enqueue(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "repeated enqueue on one dedupe key must keep the job id")

	jobs, err := repo.Claim(ctx, 10, tenant)
	require.NoError(t, err)
	require.Len(t, jobs, 1, "two enqueues with one dedupe key must collapse into one job")

	job := jobs[0]
	assert.Equal(t, id1, job.ID)
	assert.JSONEq(t, `{"localId":"c-1","rev":2}`, string(job.Payload), "merge must keep the last payload")
	assert.Equal(t, 5, job.Priority)
	assert.Zero(t, job.Attempts)
}

func TestQueueRepository_Enqueue_MergeIntoRetryResetsAttempts(t *testing.T) {
	pool := newTestPool(t)
	repo := NewQueueRepository(pool, slog.Default())
	ctx := context.Background()
	tenant := testTenant()

	_, err := repo.Enqueue(ctx, queue.EnqueueParams{
		TenantID:    tenant,
		Provider:    "hubspot",
		Type:        queue.JobTypeSyncDeal,
		Payload:     json.RawMessage(`{"localId":"d-1"}`),
		DedupeKey:   "hubspot/deal/d-1",
		NotBefore:   time.Now(),
		MaxAttempts: 10,
	})
	require.NoError(t, err)

	claimed, err := repo.Claim(ctx, 1, tenant)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// Park the job as a far-future retry, the way the worker does on failure.
	retry := claimed[0]
	retry.Attempts = 3
	retry.LastError = "rate limited"
	retry.NotBefore = time.Now().Add(time.Hour)
	retryID, err := repo.Reinsert(ctx, retry)
	require.NoError(t, err)

	// A fresh edit arrives while the retry is parked: the merge must make the
	// job ready again with a clean attempt budget.
	_, err = repo.Enqueue(ctx, queue.EnqueueParams{
		TenantID:    tenant,
		Provider:    "hubspot",
		Type:        queue.JobTypeSyncDeal,
		Payload:     json.RawMessage(`{"localId":"d-1","rev":2}`),
		DedupeKey:   "hubspot/deal/d-1",
		NotBefore:   time.Now(),
		MaxAttempts: 10,
	})
	require.NoError(t, err)

	jobs, err := repo.Claim(ctx, 10, tenant)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, retryID, jobs[0].ID)
	assert.Zero(t, jobs[0].Attempts)
	assert.Empty(t, jobs[0].LastError)
	assert.JSONEq(t, `{"localId":"d-1","rev":2}`, string(jobs[0].Payload))
}

func TestQueueRepository_Claim_ConcurrentClaimsAreExclusive(t *testing.T) {
	pool := newTestPool(t)
	repo := NewQueueRepository(pool, slog.Default())
	ctx := context.Background()
	tenant := testTenant()

	const jobCount = 10
	enqueued := make(map[int64]bool, jobCount)
	for i := 0; i < jobCount; i++ {
		id, err := repo.Enqueue(ctx, queue.EnqueueParams{
			TenantID:    tenant,
			Provider:    "hubspot",
			Type:        queue.JobTypeSyncContact,
			Payload:     json.RawMessage(`{"localId":"c-1"}`),
			NotBefore:   time.Now(),
			MaxAttempts: 10,
		})
		require.NoError(t, err)
		enqueued[id] = true
	}
	require.Len(t, enqueued, jobCount)

	// Race two claimers over the same backlog; SKIP LOCKED must hand every
	// job to exactly one of them.
	var wg sync.WaitGroup
	results := make([][]queue.Job, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = repo.Claim(ctx, jobCount, tenant)
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	seen := make(map[int64]int, jobCount)
	for _, batch := range results {
		for _, job := range batch {
			seen[job.ID]++
		}
	}
	assert.Len(t, seen, jobCount, "every job must be claimed")
	for id, n := range seen {
		assert.Equal(t, 1, n, "job %d claimed by more than one worker", id)
		assert.True(t, enqueued[id], "claimed unknown job %d", id)
	}

	// The queue is drained; nothing is left to claim.
	rest, err := repo.Claim(ctx, jobCount, tenant)
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestQueueRepository_Claim_OrdersByPriorityThenSchedule(t *testing.T) {
	pool := newTestPool(t)
	repo := NewQueueRepository(pool, slog.Default())
	ctx := context.Background()
	tenant := testTenant()

	base := time.Now().Add(-time.Minute)
	lowID, err := repo.Enqueue(ctx, queue.EnqueueParams{
		TenantID: tenant, Provider: "hubspot", Type: queue.JobTypeSyncNote,
		Payload: json.RawMessage(`{"localId":"n-1"}`), Priority: 0,
		NotBefore: base, MaxAttempts: 10,
	})
	require.NoError(t, err)
	highID, err := repo.Enqueue(ctx, queue.EnqueueParams{
		TenantID: tenant, Provider: "hubspot", Type: queue.JobTypePushQuote,
		Payload: json.RawMessage(`{"localId":"q-1"}`), Priority: 9,
		NotBefore: base.Add(30 * time.Second), MaxAttempts: 10,
	})
	require.NoError(t, err)

	jobs, err := repo.Claim(ctx, 2, tenant)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, highID, jobs[0].ID, "higher priority wins over earlier schedule")
	assert.Equal(t, lowID, jobs[1].ID)
}
