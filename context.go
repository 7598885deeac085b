package goAuthClient

import "context"

type requestIDContextKey struct{}

// WithRequestID attaches a correlation id to ctx. Transports send it as
// X-Request-ID and the manager copies it into audit events.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns the id set by [WithRequestID], or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
