// Package middleware provides HTTP middleware for the returns service.
package middleware

import (
	"context"
	"time"

	"github.com/erp/returns/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrorCodeKey is the gin context key under which handlers leave the API
// error code of a failed response
const ErrorCodeKey = "api_error_code"

var sizeBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000}

type httpMetrics struct {
	requests       *telemetry.Counter
	errors         *telemetry.Counter
	duration       *telemetry.Histogram
	requestSize    *telemetry.Histogram
	responseSize   *telemetry.Histogram
	activeRequests metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	m := &httpMetrics{}
	var err error

	if m.requests, err = telemetry.NewCounter(meter,
		"http_server_request_total", "Total number of HTTP requests", "{request}"); err != nil {
		return nil, err
	}
	if m.errors, err = telemetry.NewCounter(meter,
		"http_server_errors_total", "Error responses by API error code", "{response}"); err != nil {
		return nil, err
	}

	for _, h := range []struct {
		target **telemetry.Histogram
		opts   telemetry.HistogramOpts
	}{
		{&m.duration, telemetry.HistogramOpts{
			Name: "http_server_request_duration_seconds", Description: "HTTP request latency in seconds",
			Unit: "s", Boundaries: telemetry.HTTPDurationBuckets,
		}},
		{&m.requestSize, telemetry.HistogramOpts{
			Name: "http_server_request_size_bytes", Description: "HTTP request body size in bytes",
			Unit: "By", Boundaries: sizeBuckets,
		}},
		{&m.responseSize, telemetry.HistogramOpts{
			Name: "http_server_response_size_bytes", Description: "HTTP response body size in bytes",
			Unit: "By", Boundaries: sizeBuckets,
		}},
	} {
		if *h.target, err = telemetry.NewHistogram(meter, h.opts); err != nil {
			return nil, err
		}
	}

	if m.activeRequests, err = meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// HTTPMetrics records request counts, latency, body sizes, in-flight requests
// and error codes. A nil or disabled provider yields a pass-through middleware.
func HTTPMetrics(mp *telemetry.MeterProvider, logger *zap.Logger) gin.HandlerFunc {
	if mp == nil || !mp.IsEnabled() {
		return passThrough
	}
	return HTTPMetricsWithMeter(mp.Meter("http.server"), logger)
}

// HTTPMetricsWithMeter is HTTPMetrics over an existing meter
func HTTPMetricsWithMeter(meter metric.Meter, logger *zap.Logger) gin.HandlerFunc {
	m, err := newHTTPMetrics(meter)
	if err != nil {
		if logger != nil {
			logger.Warn("HTTP metrics disabled", zap.Error(err))
		}
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		m.activeRequests.Add(ctx, 1)
		defer m.activeRequests.Add(ctx, -1)

		c.Next()

		m.record(ctx, c, time.Since(start))
	}
}

func (m *httpMetrics) record(ctx context.Context, c *gin.Context, elapsed time.Duration) {
	method := telemetry.AttrHTTPMethod.String(c.Request.Method)
	route := telemetry.AttrHTTPRoute.String(routePattern(c))
	status := c.Writer.Status()

	m.requests.Inc(ctx, method, route, telemetry.AttrHTTPStatusCode.Int(status))
	if code := c.GetString(ErrorCodeKey); code != "" {
		m.errors.Inc(ctx, route, telemetry.AttrErrorCode.String(code),
			telemetry.AttrHTTPStatusClass.String(StatusGroup(status)))
	}

	// latency and sizes leave out the status code to keep cardinality down
	base := []attribute.KeyValue{method, route}
	m.duration.RecordDuration(ctx, elapsed, base...)
	if n := c.Request.ContentLength; n > 0 {
		m.requestSize.Record(ctx, float64(n), base...)
	}
	if n := c.Writer.Size(); n > 0 {
		m.responseSize.Record(ctx, float64(n), base...)
	}
}

// routePattern returns the matched route (e.g. "/api/v1/returns/:id") so
// return IDs never become label values
func routePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}

// StatusGroup returns the class of a status code: 2xx, 3xx, 4xx, 5xx or other
func StatusGroup(statusCode int) string {
	switch {
	case statusCode >= 500:
		return "5xx"
	case statusCode >= 400:
		return "4xx"
	case statusCode >= 300:
		return "3xx"
	case statusCode >= 200:
		return "2xx"
	default:
		return "other"
	}
}

func passThrough(c *gin.Context) {
	c.Next()
}
