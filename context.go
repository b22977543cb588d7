package multiauth

import (
	"context"

	"github.com/MrEthical07/multiauth/internal/logger"
)

type clientIPContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it
// for per-IP login throttling and audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithCorrelationID attaches a request correlation id that every log line
// the Engine writes for the request will carry.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return logger.WithCorrelationID(ctx, id)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
