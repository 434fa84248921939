package authcore

import (
	"context"

	"github.com/google/uuid"
)

type clientIPContextKey struct{}
type requestIDContextKey struct{}

// WithClientIP attaches the caller's remote IP address to ctx. The Engine
// records it on every audit row and on the account's last-login fields.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithRequestID attaches the transport's request/trace id to ctx. When the
// transport supplies none, the engine mints a UUID so audit rows always
// correlate to something.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	requestID, _ := ctx.Value(requestIDContextKey{}).(string)
	return requestID
}

// ensureRequestID mints the fallback request id once at the start of an
// engine call. Every store audit row and sink event written during that call
// then carries the same correlation value.
func ensureRequestID(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if requestID, _ := ctx.Value(requestIDContextKey{}).(string); requestID != "" {
		return ctx
	}
	return WithRequestID(ctx, uuid.NewString())
}
