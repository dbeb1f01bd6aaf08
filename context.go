package authcore

import (
	"context"

	"github.com/google/uuid"
)

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type correlationIDContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. It is recorded on
// sessions, device trusts, and events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. It participates
// in device-trust matching and session records.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithCorrelationID attaches a request correlation ID to ctx; every event
// emitted while handling the request carries it.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDContextKey{}, id)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

func correlationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return uuid.NewString()
	}
	id, _ := ctx.Value(correlationIDContextKey{}).(string)
	if id == "" {
		return uuid.NewString()
	}
	return id
}
