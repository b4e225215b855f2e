package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"crmsync/internal/domain/queue"
)

// Config tunes the poll loop.
type Config struct {
	// PollInterval is the pause between claim attempts when the queue was
	// empty. A full batch polls again immediately.
	PollInterval time.Duration
	// BatchSize is the claim limit per poll.
	BatchSize int
	// Parallelism bounds concurrently executing jobs across all connections.
	Parallelism int
}

// Worker polls the queue and feeds claimed jobs to the executor. Jobs for
// the same (tenant, provider) run strictly one at a time so a single tenant
// cannot trip the provider's rate limit by fanning out; distinct connections
// run in parallel up to the configured bound.
type Worker struct {
	queue  queue.Servicer
	exec   *Executor
	config Config
	log    *slog.Logger
}

func New(queueService queue.Servicer, exec *Executor, config Config, log *slog.Logger) *Worker {
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 20
	}
	if config.Parallelism <= 0 {
		config.Parallelism = 8
	}
	return &Worker{
		queue:  queueService,
		exec:   exec,
		config: config,
		log:    log.With("component", "worker_loop"),
	}
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started",
		"poll_interval", w.config.PollInterval,
		"batch_size", w.config.BatchSize,
		"parallelism", w.config.Parallelism)

	for {
		n, err := w.RunOnce(ctx)
		if err != nil {
			w.log.Error("claim failed", "error", err)
		}
		if n >= w.config.BatchSize {
			// Full batch: more work is likely waiting, skip the pause.
			continue
		}
		select {
		case <-ctx.Done():
			w.log.Info("worker stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-time.After(w.config.PollInterval):
		}
	}
}

// RunOnce claims and processes a single batch, returning how many jobs were
// claimed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	jobs, err := w.queue.Claim(ctx, w.config.BatchSize, "")
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}
	w.processBatch(ctx, jobs)
	return len(jobs), nil
}

func (w *Worker) processBatch(ctx context.Context, jobs []queue.Job) {
	// Claim order already respects priority; grouping preserves it within
	// each connection.
	groups := make(map[string][]queue.Job)
	var order []string
	for _, job := range jobs {
		key := job.TenantID + "/" + job.Provider
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], job)
	}

	sem := make(chan struct{}, w.config.Parallelism)
	var wg sync.WaitGroup
	for _, key := range order {
		wg.Add(1)
		go func(group []queue.Job) {
			defer wg.Done()
			for _, job := range group {
				sem <- struct{}{}
				if err := w.exec.Execute(ctx, job); err != nil {
					// The job is already off the queue; losing its outcome
					// record is the one failure worth shouting about.
					w.log.Error("failed to record job outcome",
						"job_id", job.ID, "tenant_id", job.TenantID,
						"type", job.Type, "error", err)
				}
				<-sem
			}
		}(groups[key])
	}
	wg.Wait()
}
