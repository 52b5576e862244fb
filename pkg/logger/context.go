package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	userIDKey        contextKey = "user_id"
)

// ContextWithCorrelationID stores a correlation ID for later log enrichment
func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// ContextWithUserID stores the authenticated user ID for later log enrichment
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// WithContext returns the global logger enriched with request-scoped fields
func WithContext(ctx context.Context) *zap.Logger {
	l := Get()
	if ctx == nil {
		return l
	}

	if id, ok := ctx.Value(correlationIDKey).(string); ok && id != "" {
		l = l.With(zap.String("correlation_id", id))
	}
	if id, ok := ctx.Value(userIDKey).(string); ok && id != "" {
		l = l.With(zap.String("user_id", id))
	}
	return l
}

// SetForTesting replaces the global logger, typically with zap.NewNop()
func SetForTesting(l *zap.Logger) {
	log = l
}
