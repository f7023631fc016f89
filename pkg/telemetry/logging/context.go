package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// SessionKey is the context key for recording session identifiers.
	SessionKey contextKey = "session"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithSession adds a recording session identifier to the context.
func WithSession(ctx context.Context, session string) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}

// GetSession retrieves the recording session identifier from the context.
func GetSession(ctx context.Context) string {
	if session, ok := ctx.Value(SessionKey).(string); ok {
		return session
	}
	return ""
}

// FromContext returns logger extended with the request and session ids
// found in ctx.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	var args []any
	if id := GetRequestID(ctx); id != "" {
		args = append(args, "request_id", id)
	}
	if session := GetSession(ctx); session != "" {
		args = append(args, "session", session)
	}
	if len(args) == 0 {
		return logger
	}
	return logger.With(args...)
}
