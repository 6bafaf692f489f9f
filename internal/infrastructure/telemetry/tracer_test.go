package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     1.0,
		ServiceName:       "returns-test",
	}

	tp, err := NewTracerProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.Equal(t, "returns-test", tp.GetConfig().ServiceName)
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.ForceFlush(ctx))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestNewTracerProvider_NilLogger(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{}, nil)
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
}

func TestTracerProvider_EnableSpanProfilesWhenDisabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, tp.EnableSpanProfiles())
	assert.False(t, tp.IsSpanProfilesEnabled())
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{ratio: 1.0, want: "AlwaysOnSampler"},
		{ratio: 2.0, want: "AlwaysOnSampler"},
		{ratio: 0.0, want: "AlwaysOffSampler"},
		{ratio: 0.25, want: "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		description := samplerFor(tt.ratio).Description()
		assert.Contains(t, description, "ParentBased")
		assert.Contains(t, description, tt.want)
	}
}

func TestNewResource(t *testing.T) {
	res, err := newResource("returns-test")
	require.NoError(t, err)

	var name, version string
	for _, attr := range res.Attributes() {
		switch attr.Key {
		case "service.name":
			name = attr.Value.AsString()
		case "service.version":
			version = attr.Value.AsString()
		}
	}
	assert.Equal(t, "returns-test", name)
	assert.Equal(t, ServiceVersion, version)
}
