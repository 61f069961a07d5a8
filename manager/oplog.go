package manager

import (
	"context"
	"log/slog"
)

type opIDKey struct{}

type attemptKey struct{}

// ContextWithOpID returns a context carrying the request's op_id.
func ContextWithOpID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, opIDKey{}, id)
}

// OpIDFromContext returns the op_id carried by ctx, or 0.
func OpIDFromContext(ctx context.Context) uint64 {
	id, _ := ctx.Value(opIDKey{}).(uint64)
	return id
}

// ContextWithAttempt returns a context carrying a registration attempt
// id. Retries of the same probe share one attempt id.
func ContextWithAttempt(ctx context.Context, attempt string) context.Context {
	return context.WithValue(ctx, attemptKey{}, attempt)
}

// AttemptFromContext returns the attempt id carried by ctx, or "".
func AttemptFromContext(ctx context.Context) string {
	a, _ := ctx.Value(attemptKey{}).(string)
	return a
}

// opIDHandler wraps a slog.Handler to automatically extract op_id and
// attempt from context and add them to log records. Use with
// InfoContext, WarnContext, etc.
type opIDHandler struct {
	slog.Handler
}

// Handle extracts op_id and attempt from context and adds them to the
// record.
func (h opIDHandler) Handle(ctx context.Context, r slog.Record) error {
	if opID := OpIDFromContext(ctx); opID != 0 {
		r.AddAttrs(slog.Uint64("op_id", opID))
	}
	if attempt := AttemptFromContext(ctx); attempt != "" {
		r.AddAttrs(slog.String("attempt", attempt))
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs returns a new handler with the given attributes, maintaining the wrapper.
func (h opIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return opIDHandler{h.Handler.WithAttrs(attrs)}
}

// WithGroup returns a new handler with the given group, maintaining the wrapper.
func (h opIDHandler) WithGroup(name string) slog.Handler {
	return opIDHandler{h.Handler.WithGroup(name)}
}

// WithOpIDHandler wraps a logger's handler to extract op_id from context.
func WithOpIDHandler(logger *slog.Logger) *slog.Logger {
	return slog.New(opIDHandler{logger.Handler()})
}
