package common

import "context"

type contextKey int

const correlationIDKey contextKey = iota

// WithCorrelationID stores the request correlation ID in the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID returns the request correlation ID, or "" when absent.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// LoggerFrom returns a child logger tagged with the request correlation ID, if any.
func LoggerFrom(ctx context.Context, logger *Logger) *Logger {
	id := CorrelationID(ctx)
	if id == "" {
		return logger
	}
	return &Logger{Logger: logger.With().Str("correlation_id", id).Logger()}
}
