package worker

import (
	"context"
	"errors"
	"fmt"

	"opscord.app/pipeline/internal/model"
)

// Handler executes one kind of job. Handlers report an outcome through the
// returned error; they never touch job status themselves. Handlers must be
// idempotent: the queue is at-least-once.
type Handler interface {
	Kind() model.JobKind
	Handle(ctx context.Context, job *model.Job) error
}

// NonRetryableError wraps errors another attempt cannot fix. The dispatcher
// fails the job terminally instead of requeueing it.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return e.Err.Error()
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable marks err as not worth retrying.
func NonRetryable(err error) error {
	return &NonRetryableError{Err: err}
}

func IsNonRetryable(err error) bool {
	var nr *NonRetryableError
	return errors.As(err, &nr)
}

// Registry maps job kinds to their handlers. Dispatch is typed: an
// unregistered kind is a terminal failure, not a silent skip.
type Registry struct {
	handlers map[model.JobKind]Handler
}

func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[model.JobKind]Handler, len(handlers))}
	for _, h := range handlers {
		if _, dup := r.handlers[h.Kind()]; dup {
			return nil, fmt.Errorf("duplicate handler for job type %q", h.Kind())
		}
		r.handlers[h.Kind()] = h
	}
	return r, nil
}

func (r *Registry) Lookup(kind model.JobKind) (Handler, bool) {
	h, ok := r.handlers[kind]
	return h, ok
}
