package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// ReturnIDKey is the context key for the return being processed
	ReturnIDKey contextKey = "return_id"
	// OperatorKey is the context key for the operator that triggered the action
	OperatorKey contextKey = "operator"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, l)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithRequestID adds request ID to context and returns enriched logger
func WithRequestID(ctx context.Context, l *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return withField(ctx, l, RequestIDKey, requestID)
}

// WithReturnID adds the return ID to context and returns enriched logger
func WithReturnID(ctx context.Context, l *zap.Logger, returnID string) (context.Context, *zap.Logger) {
	return withField(ctx, l, ReturnIDKey, returnID)
}

// WithOperator adds the operator to context and returns enriched logger
func WithOperator(ctx context.Context, l *zap.Logger, operator string) (context.Context, *zap.Logger) {
	return withField(ctx, l, OperatorKey, operator)
}

func withField(ctx context.Context, l *zap.Logger, key contextKey, value string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, key, value)
	enriched := l.With(zap.String(string(key), value))
	return WithContext(ctx, enriched), enriched
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// GetReturnID retrieves the return ID from context
func GetReturnID(ctx context.Context) string {
	return stringValue(ctx, ReturnIDKey)
}

// GetOperator retrieves the operator from context
func GetOperator(ctx context.Context) string {
	return stringValue(ctx, OperatorKey)
}

// GetTraceID extracts the trace ID from the context's span, or ""
func GetTraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// L returns the context logger with the active span's trace fields.
// Usage: logger.L(ctx).Info("message", zap.String("key", "value"))
func L(ctx context.Context) *zap.Logger {
	return withTrace(ctx, FromContext(ctx))
}

// Enrich adds trace_id, span_id, request_id, return_id and operator from ctx to a
// logger that did not come from ctx
func Enrich(ctx context.Context, l *zap.Logger) *zap.Logger {
	l = withTrace(ctx, l)
	for _, key := range []contextKey{RequestIDKey, ReturnIDKey, OperatorKey} {
		if v := stringValue(ctx, key); v != "" {
			l = l.With(zap.String(string(key), v))
		}
	}
	return l
}

func withTrace(ctx context.Context, l *zap.Logger) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return l
	}
	return l.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}
