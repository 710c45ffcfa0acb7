package http

import (
	"context"

	"portfolio/api/internal/auth"
)

type contextKey string

const (
	requestIDContextKey contextKey = "portfolio/request-id"
	clientIPContextKey  contextKey = "portfolio/client-ip"
	claimsContextKey    contextKey = "portfolio/claims"
)

// RequestIDFromContext extracts the request identifier from the context when available.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(requestIDContextKey).(string); ok {
		return value
	}
	return ""
}

// ClientIPFromContext returns the resolved client address.
func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(clientIPContextKey).(string); ok {
		return value
	}
	return ""
}

// ClaimsFromContext returns the authenticated session, or nil for anonymous requests.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	if ctx == nil {
		return nil
	}
	claims, _ := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims
}

func isAdmin(ctx context.Context) bool {
	return ClaimsFromContext(ctx) != nil
}
