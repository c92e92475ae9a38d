package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey     contextKey = "logger"
	requestIDKey  contextKey = "request_id"
	searchTermKey contextKey = "search_term"
)

// WithContext returns a logger with fields from context
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	fields := make([]zap.Field, 0, 2)
	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if term := GetSearchTerm(ctx); term != "" {
		fields = append(fields, zap.String("search_term", term))
	}

	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// FromContext extracts logger from context, returns the global logger if not found
func FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return L()
	}
	if logger, ok := ctx.Value(loggerKey).(*Logger); ok && logger != nil {
		return logger.WithContext(ctx)
	}
	return L().WithContext(ctx)
}

// ToContext adds logger to context
func ToContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithSearchTerm adds the normalized search term to context
func WithSearchTerm(ctx context.Context, term string) context.Context {
	return context.WithValue(ctx, searchTermKey, term)
}

// GetRequestID extracts request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetSearchTerm extracts the search term from context
func GetSearchTerm(ctx context.Context) string {
	if term, ok := ctx.Value(searchTermKey).(string); ok {
		return term
	}
	return ""
}
