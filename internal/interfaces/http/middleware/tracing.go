package middleware

import (
	"net/http"

	"github.com/erp/returns/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// MaxRequestIDLength is the maximum length for request IDs to prevent DoS via large headers.
	MaxRequestIDLength = 128
	// MaxOperatorLength bounds the operator header copied into spans.
	MaxOperatorLength = 64
)

// Tracing returns OpenTelemetry server tracing middleware. Register SpanEnricher
// after it to add request_id and operator attributes and error status.
func Tracing(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// SpanEnricher decorates the server span created by Tracing. Spans for 4xx and
// 5xx responses are marked with codes.Error.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if requestID := truncate(c.Writer.Header().Get(logger.RequestIDHeader), MaxRequestIDLength); requestID != "" {
				span.SetAttributes(attribute.String("request_id", requestID))
			}
			if operator := truncate(c.GetHeader(logger.OperatorHeader), MaxOperatorLength); operator != "" {
				span.SetAttributes(attribute.String("operator", operator))
			}
		}

		c.Next()

		if span.IsRecording() {
			markSpanStatus(span, c.Writer.Status())
		}
	}
}

func markSpanStatus(span trace.Span, statusCode int) {
	if statusCode < http.StatusBadRequest {
		return
	}
	message := "Client Error"
	switch {
	case statusCode >= http.StatusInternalServerError:
		message = "Internal Server Error"
	case statusCode == http.StatusNotFound:
		message = "Not Found"
	case statusCode == http.StatusConflict:
		message = "Conflict"
	}
	span.SetStatus(codes.Error, message)
	span.SetAttributes(attribute.Int("http.status_code", statusCode))
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
