package dispatch

import (
	"context"
	"errors"
	"time"
)

// ErrSkipRetry tells the backend to archive a task instead of retrying it.
// Handlers wrap it around failures that no retry can fix.
var ErrSkipRetry = errors.New("dispatch: skip retry")

// Task is a background job: a stable type name and an opaque payload.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. A non-nil error asks for a retry unless it wraps
// ErrSkipRetry. Handlers must be idempotent.
type Handler func(ctx context.Context, task Task) error

// EnqueueOption controls enqueue behavior. Zero values mean unspecified.
// ProcessAt takes precedence over ProcessIn.
type EnqueueOption struct {
	Queue     string
	ProcessIn time.Duration
	ProcessAt time.Time
	MaxRetry  int
	Timeout   time.Duration
	Retention time.Duration
}

type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (id string, err error)
	Close() error
}

// Server runs handlers for registered task types. Run blocks until ctx is
// canceled or Stop is called.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
	Stop(ctx context.Context) error
}

func mergeOptions(opts []EnqueueOption) EnqueueOption {
	var out EnqueueOption
	for _, o := range opts {
		if o.Queue != "" {
			out.Queue = o.Queue
		}
		if o.ProcessIn > 0 {
			out.ProcessIn = o.ProcessIn
		}
		if !o.ProcessAt.IsZero() {
			out.ProcessAt = o.ProcessAt
		}
		if o.MaxRetry > 0 {
			out.MaxRetry = o.MaxRetry
		}
		if o.Timeout > 0 {
			out.Timeout = o.Timeout
		}
		if o.Retention > 0 {
			out.Retention = o.Retention
		}
	}
	return out
}
