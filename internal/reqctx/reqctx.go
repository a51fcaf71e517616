// Package reqctx defines the context keys shared between the request
// pipeline middleware, the auth package, and handlers. Keeping them in a
// leaf package avoids an import cycle between httputil and the middleware
// stack that populates the context.
package reqctx

import "context"

type ctxKey int

const (
	keyRequestID ctxKey = iota
	keyUserID
	keyUserTier
	keyTraceID
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(keyRequestID).(string)
	return v
}

func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyUserID, id)
}

func UserID(ctx context.Context) string {
	v, _ := ctx.Value(keyUserID).(string)
	return v
}

func WithUserTier(ctx context.Context, tier string) context.Context {
	return context.WithValue(ctx, keyUserTier, tier)
}

func UserTier(ctx context.Context) string {
	v, _ := ctx.Value(keyUserTier).(string)
	return v
}

// WithTraceID and TraceID carry a trace id for log correlation, kept apart
// from the request id so one trace id can span several request ids. No
// middleware in this repository sets it, so TraceID returns "" unless a
// caller has used WithTraceID.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyTraceID, id)
}

func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(keyTraceID).(string)
	return v
}
