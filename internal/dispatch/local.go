package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Local runs tasks in-process on their own goroutine. It serves as both
// Client and Server, for single-binary deployments and tests.
type Local struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler

	// stateMu orders wg.Add in Enqueue before wg.Wait in shutdown.
	stateMu sync.Mutex
	stopped bool
	base    context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var (
	_ Client = (*Local)(nil)
	_ Server = (*Local)(nil)
)

func NewLocal(logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Local{
		logger:   logger,
		handlers: make(map[string]Handler),
		base:     base,
		cancel:   cancel,
	}
}

func (l *Local) Register(taskType string, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[taskType] = h
}

// Enqueue starts the task and returns without waiting for it. The task
// outlives ctx; it stops only when the Local is stopped.
func (l *Local) Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (string, error) {
	if t.Type == "" {
		return "", errors.New("dispatch: task type is required")
	}
	l.mu.RLock()
	h, ok := l.handlers[t.Type]
	l.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("dispatch: no handler registered for %s", t.Type)
	}

	id := uuid.NewString()
	op := mergeOptions(opts)

	l.stateMu.Lock()
	if l.stopped {
		l.stateMu.Unlock()
		return "", errors.New("dispatch: local dispatcher stopped")
	}
	l.wg.Add(1)
	l.stateMu.Unlock()

	go func() {
		defer l.wg.Done()
		l.run(id, t, h, op)
	}()
	return id, nil
}

func (l *Local) run(id string, t Task, h Handler, op EnqueueOption) {
	if delay := startDelay(op, time.Now()); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-l.base.Done():
			return
		}
	}

	for attempt := 0; ; attempt++ {
		err := l.attempt(t, h, op)
		if err == nil {
			return
		}
		l.logger.Error("task failed", "taskId", id, "taskType", t.Type, "retried", attempt, "maxRetry", op.MaxRetry, "err", err)
		if errors.Is(err, ErrSkipRetry) || attempt >= op.MaxRetry || l.base.Err() != nil {
			return
		}
	}
}

func (l *Local) attempt(t Task, h Handler, op EnqueueOption) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: %s handler panicked: %v", t.Type, r)
		}
	}()

	ctx := l.base
	if op.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, op.Timeout)
		defer cancel()
	}
	return h(ctx, t)
}

func startDelay(op EnqueueOption, now time.Time) time.Duration {
	if !op.ProcessAt.IsZero() {
		return op.ProcessAt.Sub(now)
	}
	return op.ProcessIn
}

// Wait blocks until every enqueued task has finished. It must not race with
// Enqueue; use Stop for that.
func (l *Local) Wait() {
	l.wg.Wait()
}

// Run blocks until ctx is canceled or Stop is called.
func (l *Local) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-l.base.Done():
	}
	l.shutdown()
	return nil
}

// Stop cancels pending and running tasks and waits for them to return.
// Enqueue fails afterwards.
func (l *Local) Stop(context.Context) error {
	l.shutdown()
	return nil
}

func (l *Local) shutdown() {
	l.stateMu.Lock()
	l.stopped = true
	l.cancel()
	l.stateMu.Unlock()
	l.wg.Wait()
}

func (l *Local) Close() error {
	return nil
}
