package resilient

import "context"

const RequestIDHeader = "X-Request-ID"

type ctxKey struct{}

// WithRequestID stores a request id that outbound calls forward upstream.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
