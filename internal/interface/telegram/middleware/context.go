package middleware

import "context"

type contextKey string

// TraceIDContextKey carries the id assigned to an update for log correlation.
const TraceIDContextKey contextKey = "trace_id"

// ContextWithTraceID returns a context carrying id.
func ContextWithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDContextKey, id)
}

// TraceIDFromContext returns the trace id, or "" when none is set.
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(TraceIDContextKey).(string)
	return id
}
