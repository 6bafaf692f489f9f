package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func sqlFunc(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func fieldValue(entry observer.LoggedEntry, key string) (string, bool) {
	for _, f := range entry.Context {
		if f.Key == key {
			return f.String, true
		}
	}
	return "", false
}

func TestGormLogger_Options(t *testing.T) {
	gormLog := NewGormLogger(zap.NewNop(), gormlogger.Info,
		WithSlowThreshold(500*time.Millisecond),
		WithIgnoreRecordNotFoundError(false),
	)

	assert.Equal(t, 500*time.Millisecond, gormLog.slowThreshold)
	assert.False(t, gormLog.ignoreRecordNotFoundError)

	warn, ok := gormLog.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, warn.logLevel)
	assert.Equal(t, gormlogger.Info, gormLog.logLevel)

	var _ gormlogger.Interface = gormLog
}

func TestGormLogger_Trace(t *testing.T) {
	t.Run("logs errors", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gormLog := NewGormLogger(zap.New(core), gormlogger.Error)

		gormLog.Trace(context.Background(), time.Now(), sqlFunc("SELECT * FROM returns", 0), errors.New("boom"))

		require.Len(t, recorded.All(), 1)
		assert.Equal(t, "SQL Error", recorded.All()[0].Message)
	})

	t.Run("ignores record not found", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gormLog := NewGormLogger(zap.New(core), gormlogger.Error)

		gormLog.Trace(context.Background(), time.Now(), sqlFunc("SELECT * FROM returns WHERE id = ?", 0), gormlogger.ErrRecordNotFound)

		assert.Empty(t, recorded.All())
	})

	t.Run("warns on slow queries", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gormLog := NewGormLogger(zap.New(core), gormlogger.Warn, WithSlowThreshold(time.Nanosecond))

		gormLog.Trace(context.Background(), time.Now().Add(-time.Second), sqlFunc("SELECT 1", 1), nil)

		require.Len(t, recorded.All(), 1)
		assert.Contains(t, recorded.All()[0].Message, "SLOW SQL")
	})

	t.Run("flags conditional writes that matched nothing", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gormLog := NewGormLogger(zap.New(core), gormlogger.Info, WithSlowThreshold(0))

		sql := `UPDATE "returns" SET "status"='confirmed' WHERE id = 'x' AND status = 'draft' AND version = 1`
		gormLog.Trace(context.Background(), time.Now(), sqlFunc(sql, 0), nil)
		gormLog.Trace(context.Background(), time.Now(), sqlFunc(sql, 1), nil)

		logs := recorded.All()
		require.Len(t, logs, 2)
		assert.Equal(t, "SQL conditional write matched no rows", logs[0].Message)
		assert.Equal(t, zapcore.InfoLevel, logs[0].Level)
		assert.Equal(t, "SQL Query", logs[1].Message)
	})

	t.Run("is silent in silent mode", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gormLog := NewGormLogger(zap.New(core), gormlogger.Silent)

		gormLog.Trace(context.Background(), time.Now(), sqlFunc("SELECT 1", 1), errors.New("ignored"))

		assert.Empty(t, recorded.All())
	})

	t.Run("carries request and return ids", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gormLog := NewGormLogger(zap.New(core), gormlogger.Info)

		ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
		ctx = context.WithValue(ctx, ReturnIDKey, "ret-1")
		gormLog.Trace(ctx, time.Now(), sqlFunc("SELECT 1", 1), nil)

		require.Len(t, recorded.All(), 1)
		requestID, ok := fieldValue(recorded.All()[0], "request_id")
		assert.True(t, ok)
		assert.Equal(t, "req-1", requestID)
		returnID, ok := fieldValue(recorded.All()[0], "return_id")
		assert.True(t, ok)
		assert.Equal(t, "ret-1", returnID)
	})
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"WARN", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.level))
		})
	}
}
