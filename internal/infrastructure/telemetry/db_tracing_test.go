package telemetry

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()
	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}

func TestNewDBTracingPlugin_FillsDefaults(t *testing.T) {
	p := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, nil)
	assert.Equal(t, 200*time.Millisecond, p.config.SlowQueryThresh)
	assert.Equal(t, "postgresql", p.config.DBSystem)
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db := newTrackedDB(t)
	require.NoError(t, NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop()).RegisterOtelGorm(db))

	assert.Nil(t, db.Callback().Update().Get("returns_tracing:after_update"))
}

func TestDBTracingPlugin_RecordsQuerySpans(t *testing.T) {
	sr := setupTestTracer(t)
	db := newTrackedDB(t)

	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.DBSystem = "sqlite"
	require.NoError(t, NewDBTracingPlugin(cfg, zap.NewNop()).RegisterOtelGorm(db))
	assert.NotNil(t, db.Callback().Update().Get("returns_tracing:after_update"))

	row := trackedRow{ID: uuid.New(), Status: "draft", Version: 1}
	require.NoError(t, db.Create(&row).Error)

	var loaded trackedRow
	require.NoError(t, db.First(&loaded, "id = ?", row.ID).Error)
	assert.Equal(t, "draft", loaded.Status)

	assert.GreaterOrEqual(t, len(sr.Ended()), 2)
}
