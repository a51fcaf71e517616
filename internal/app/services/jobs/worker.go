package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	core "github.com/taskwarden/taskwarden/internal/app/core/service"
	"github.com/taskwarden/taskwarden/internal/app/domain/job"
	"github.com/taskwarden/taskwarden/internal/app/metrics"
	"github.com/taskwarden/taskwarden/internal/app/storage"
	"github.com/taskwarden/taskwarden/pkg/logger"
)

// Worker polls storage.JobStore on an interval, releases stale locks left
// by crashed workers, claims a batch of due jobs, and dispatches each to
// its registered handler. It satisfies system.Service so application.go can
// start/stop it alongside the HTTP server.
type Worker struct {
	id       string
	store    storage.JobStore
	registry *Registry
	log      *logger.Logger

	pollInterval   time.Duration
	batchSize      int
	staleLockAfter time.Duration
	retryBackoff   []time.Duration

	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// Config carries the worker's tunables, sourced from config.Config.
type Config struct {
	PollInterval   time.Duration
	BatchSize      int
	StaleLockAfter time.Duration
	RetryBackoff   []time.Duration
}

// NewWorker builds a worker with a random instance id, used as the lock
// owner recorded on jobs.locked_by for diagnostics.
func NewWorker(store storage.JobStore, registry *Registry, log *logger.Logger, cfg Config) *Worker {
	return &Worker{
		id:             "worker-" + uuid.NewString()[:8],
		store:          store,
		registry:       registry,
		log:            log,
		pollInterval:   cfg.PollInterval,
		batchSize:      cfg.BatchSize,
		staleLockAfter: cfg.StaleLockAfter,
		retryBackoff:   cfg.RetryBackoff,
	}
}

func (w *Worker) Name() string { return "job_worker:" + w.id }

// Descriptor satisfies system.DescriptorProvider for introspection.
func (w *Worker) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:   w.Name(),
		Domain: "jobs",
		Layer:  core.LayerEngine,
	}.WithCapabilities("poll", "claim", "retry-backoff", "dead-letter")
}

// Start launches the poll loop in a background goroutine and returns
// immediately; Stop blocks until the loop has exited its current tick.
func (w *Worker) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(w.done)
		w.loop(loopCtx)
	}()
	return nil
}

func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	select {
	case <-w.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		w.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick runs one poll iteration: release stale locks, claim a batch, and
// dispatch each claimed job in sequence. Kept single-threaded per worker
// instance; horizontal scaling happens by running more worker processes,
// each with a distinct id, relying on storage.JobStore.Claim's row-level
// locking for mutual exclusion.
func (w *Worker) tick(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.staleLockAfter)
	if released, err := w.store.ReleaseStaleLocks(ctx, cutoff); err != nil {
		w.log.WithFields(map[string]interface{}{"error": err.Error()}).Warn("release stale job locks failed")
	} else if released > 0 {
		w.log.WithFields(map[string]interface{}{"count": released}).Info("released stale job locks")
	}

	claimed, err := w.store.Claim(ctx, w.id, w.batchSize)
	if err != nil {
		w.log.WithFields(map[string]interface{}{"error": err.Error()}).Warn("claim jobs failed")
		return
	}
	for _, j := range claimed {
		w.run(ctx, j)
	}
}

func (w *Worker) run(ctx context.Context, j job.Job) {
	hooks := metrics.JobDispatchHooks(string(j.Type))
	meta := map[string]string{"job_id": j.ID}
	hooks.OnStart(ctx, meta)
	start := time.Now()

	handler, ok := w.registry.Lookup(j.Type)
	if !ok {
		uerr := errUnregisteredType(j.Type)
		if derr := w.store.DeadLetter(ctx, j.ID, uerr.Error()); derr != nil {
			w.log.WithFields(map[string]interface{}{"job_id": j.ID, "error": derr.Error()}).Error("dead letter job failed")
		}
		metrics.RecordJobDeadLettered(string(j.Type))
		hooks.OnComplete(ctx, meta, uerr, time.Since(start))
		metrics.RecordJobExecution(string(j.Type), "error", time.Since(start))
		return
	}

	outcome, result, err := handler(ctx, j)
	duration := time.Since(start)
	hooks.OnComplete(ctx, meta, err, duration)

	switch {
	case err != nil:
		w.finishError(ctx, j, err)
		metrics.RecordJobExecution(string(j.Type), "error", duration)
	case outcome == job.OutcomeSkipped:
		if cerr := w.store.Complete(ctx, j.ID, result); cerr != nil {
			w.log.WithFields(map[string]interface{}{"job_id": j.ID, "error": cerr.Error()}).Error("complete skipped job failed")
		}
		metrics.RecordJobExecution(string(j.Type), "skipped", duration)
	case outcome == job.OutcomeRetry:
		w.finishError(ctx, j, nil)
		metrics.RecordJobExecution(string(j.Type), "retry", duration)
	default:
		if cerr := w.store.Complete(ctx, j.ID, result); cerr != nil {
			w.log.WithFields(map[string]interface{}{"job_id": j.ID, "error": cerr.Error()}).Error("complete job failed")
		}
		metrics.RecordJobExecution(string(j.Type), "success", duration)
	}
}

// finishError applies the retry backoff schedule, or dead-letters the job
// once its attempt count has exhausted the configured budget.
func (w *Worker) finishError(ctx context.Context, j job.Job, err error) {
	msg := "handler requested retry"
	if err != nil {
		msg = err.Error()
	}

	// Claim has already counted this attempt.
	attempt := j.Attempts
	if attempt >= j.MaxAttempts {
		if derr := w.store.DeadLetter(ctx, j.ID, msg); derr != nil {
			w.log.WithFields(map[string]interface{}{"job_id": j.ID, "error": derr.Error()}).Error("dead letter job failed")
		}
		metrics.RecordJobDeadLettered(string(j.Type))
		return
	}

	delay := w.backoffFor(attempt)
	next := time.Now().UTC().Add(delay)
	if ferr := w.store.Fail(ctx, j.ID, msg, &next); ferr != nil {
		w.log.WithFields(map[string]interface{}{"job_id": j.ID, "error": ferr.Error()}).Error("fail job failed")
	}
}

func (w *Worker) backoffFor(attempt int) time.Duration {
	if len(w.retryBackoff) == 0 {
		return time.Minute
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(w.retryBackoff) {
		idx = len(w.retryBackoff) - 1
	}
	return w.retryBackoff[idx]
}

// marshalPayload is a small convenience for handlers building a result or
// enqueuing a follow-up job.
func marshalPayload(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
