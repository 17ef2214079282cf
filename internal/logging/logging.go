package logging

import (
	"context"
	"log/slog"
)

type correlationKey struct{}

// WithCorrelationID returns a context whose log records carry id as correlationId.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// ContextHandler adds request-scoped attributes from the context to every
// record logged through a *Context method.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: next}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := CorrelationID(ctx); id != "" {
		r.AddAttrs(slog.String("correlationId", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// Contextual returns logger unchanged when it already routes through a
// ContextHandler, and a wrapped copy otherwise.
func Contextual(logger *slog.Logger) *slog.Logger {
	if _, ok := logger.Handler().(*ContextHandler); ok {
		return logger
	}
	return slog.New(NewContextHandler(logger.Handler()))
}
