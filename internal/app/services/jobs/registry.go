// Package jobs implements the durable job engine: a poll loop that claims
// due rows from storage.JobStore, dispatches them to a type-keyed handler
// registry, and applies exponential backoff or dead-lettering depending on
// the handler's outcome. The daily scheduler in scheduler.go enqueues the
// recurring maintenance jobs handlers.go wires up.
package jobs

import (
	"context"
	"fmt"

	"github.com/taskwarden/taskwarden/internal/app/domain/job"
)

// Handler executes one claimed job and reports what happened to it. A
// returned error with OutcomeRetry or OutcomeError causes the worker to
// apply the configured backoff (or dead-letter past the attempt budget); a
// nil error with OutcomeSuccess or OutcomeSkipped completes the job.
type Handler func(ctx context.Context, j job.Job) (job.Outcome, []byte, error)

// Registry maps a job.Type to the handler that runs it.
type Registry struct {
	handlers map[job.Type]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[job.Type]Handler)}
}

// Register binds a handler to a job type. Re-registering a type overwrites
// the previous handler.
func (r *Registry) Register(t job.Type, h Handler) {
	r.handlers[t] = h
}

// Lookup returns the handler bound to t, if any.
func (r *Registry) Lookup(t job.Type) (Handler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}

// errUnregisteredType is returned by the worker when a claimed job's type
// has no bound handler; it is treated as a permanent error so the job is
// dead-lettered rather than retried forever.
func errUnregisteredType(t job.Type) error {
	return fmt.Errorf("jobs: no handler registered for type %q", t)
}
