// Package events implements the synchronous, in-process domain event bus:
// a type -> ordered handler list registry. Dispatch runs handlers in
// registration order on the caller's goroutine and never lets one
// handler's failure mask another's. No transaction is shared with the
// emitting operation: each store call a handler makes commits on its own.
package events

import (
	"context"
	"fmt"

	"github.com/taskwarden/taskwarden/internal/app/domain/event"
	"github.com/taskwarden/taskwarden/pkg/logger"
)

// Handler reacts to one dispatched Event. It receives only the context and
// the event; its writes are not rolled back together with the domain change
// that triggered the event.
type Handler func(ctx context.Context, e event.Event) error

// Bus is a process-local registry. Registration happens once at start-up;
// Dispatch is safe to call concurrently once registration is complete.
type Bus struct {
	log      *logger.Logger
	handlers map[event.Type][]Handler
}

func New(log *logger.Logger) *Bus {
	return &Bus{log: log, handlers: make(map[event.Type][]Handler)}
}

// Subscribe registers a handler for a type, appended to the end of that
// type's handler list. Not safe to call concurrently with Dispatch.
func (b *Bus) Subscribe(t event.Type, h Handler) {
	b.handlers[t] = append(b.handlers[t], h)
}

// Dispatch runs every handler registered for e.Type in order, catching and
// collecting each handler's error rather than stopping or propagating it.
// A panicking handler is recovered and reported as an error. The caller
// gets every error back so it can log them; none of them abort the
// emitting operation.
func (b *Bus) Dispatch(ctx context.Context, e event.Event) []error {
	var errs []error
	for _, h := range b.handlers[e.Type] {
		if err := b.safeCall(ctx, h, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (b *Bus) safeCall(ctx context.Context, h Handler, e event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(map[string]interface{}{
				"event_type": e.Type,
			}).Errorf("event handler panicked: %v", r)
			err = fmt.Errorf("event handler panicked: %v", r)
		}
	}()
	if err = h(ctx, e); err != nil {
		b.log.WithFields(map[string]interface{}{
			"event_type": e.Type,
			"error":      err.Error(),
		}).Warn("event handler returned an error")
	}
	return err
}
