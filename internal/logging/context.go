package logging

import "context"

type contextKey int

const (
	runIDKey contextKey = iota
	loggerKey
)

// WithRunIDCtx returns a context carrying the run ID.
func WithRunIDCtx(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromCtx returns the run ID carried by ctx, or "".
func RunIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// WithLoggerCtx returns a context carrying the logger and its run ID.
func WithLoggerCtx(ctx context.Context, l *Logger) context.Context {
	ctx = context.WithValue(ctx, loggerKey, l)
	if l != nil && l.runID != "" {
		ctx = WithRunIDCtx(ctx, l.runID)
	}
	return ctx
}

// FromCtx returns the logger carried by ctx. Without one it returns the
// global logger, tagged with the context's run ID when present.
func FromCtx(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok && l != nil {
		return l
	}
	l := Global()
	if id := RunIDFromCtx(ctx); id != "" {
		l = l.WithRunID(id)
	}
	return l
}
