package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"ERP_APP_NAME",
	"ERP_APP_ENV",
	"ERP_APP_PORT",
	"ERP_DATABASE_HOST",
	"ERP_DATABASE_PORT",
	"ERP_DATABASE_PASSWORD",
	"ERP_DATABASE_SSLMODE",
	"ERP_DATABASE_MAX_OPEN_CONNS",
	"ERP_DATABASE_MAX_IDLE_CONNS",
	"ERP_KAFKA_BROKERS",
	"ERP_KAFKA_TOPIC",
	"ERP_LOCK_ENABLED",
	"ERP_LOCK_TTL",
	"ERP_RECONCILIATION_ENABLED",
	"ERP_RECONCILIATION_INTERVAL",
	"ERP_RECONCILIATION_SETTLE_WINDOW",
	"ERP_INVENTORY_MAX_SWAP_ATTEMPTS",
	"ERP_TELEMETRY_SAMPLING_RATIO",
	"ERP_TELEMETRY_DB_LOG_FULL_SQL",
	"ERP_TELEMETRY_LOGS_ENABLED",
	"ERP_TELEMETRY_SERVICE_NAME",
	"ERP_PROFILING_ENABLED",
	"ERP_PROFILING_SERVER_ADDRESS",
	"ERP_PROFILING_APPLICATION_NAME",
	"ERP_SWAGGER_ENABLED",
	"ERP_SWAGGER_ALLOWED_IPS",
}

// withCleanEnv clears every config variable and restores them after the test
func withCleanEnv(t *testing.T) {
	t.Helper()
	original := make(map[string]string, len(configEnvKeys))
	for _, k := range configEnvKeys {
		original[k] = os.Getenv(k)
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for k, v := range original {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("loads defaults when no config file or env", func(t *testing.T) {
		withCleanEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "returns-service", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
		assert.Equal(t, 5, cfg.Inventory.MaxSwapAttempts)
		assert.Equal(t, 30*time.Second, cfg.Lock.TTL)
		assert.Equal(t, "returns:transition:", cfg.Lock.Prefix)
		assert.Equal(t, uint32(5), cfg.Breaker.ConsecutiveFailures)
		assert.Equal(t, 15*time.Minute, cfg.Reconciliation.Interval)
		assert.Equal(t, 2*time.Minute, cfg.Reconciliation.SettleWindow)
		assert.Equal(t, "returns.events", cfg.Kafka.Topic)
		assert.Equal(t, 24*time.Hour, cfg.Kafka.DedupWindow)
		assert.False(t, cfg.Kafka.Enabled())
		assert.False(t, cfg.Telemetry.LogsEnabled)
		assert.True(t, cfg.Swagger.Enabled)
		assert.Empty(t, cfg.Swagger.AllowedIPs)
		assert.False(t, cfg.Profiling.Enabled)
		assert.Equal(t, "http://localhost:4040", cfg.Profiling.ServerAddress)
		assert.Equal(t, "returns-service", cfg.Profiling.ApplicationName)
	})

	t.Run("profiling application name follows the service name", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("ERP_TELEMETRY_SERVICE_NAME", "returns-eu")
		os.Setenv("ERP_PROFILING_ENABLED", "true")
		os.Setenv("ERP_TELEMETRY_LOGS_ENABLED", "true")

		cfg, err := Load()
		require.NoError(t, err)

		assert.True(t, cfg.Profiling.Enabled)
		assert.True(t, cfg.Telemetry.LogsEnabled)
		assert.Equal(t, "returns-eu", cfg.Profiling.ApplicationName)
	})

	t.Run("loads from environment variables", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("ERP_APP_NAME", "returns-test")
		os.Setenv("ERP_APP_PORT", "9000")
		os.Setenv("ERP_DATABASE_HOST", "testdb.local")
		os.Setenv("ERP_DATABASE_PORT", "5433")
		os.Setenv("ERP_KAFKA_BROKERS", "kafka-1:9092")
		os.Setenv("ERP_KAFKA_TOPIC", "returns.audit")
		os.Setenv("ERP_LOCK_ENABLED", "true")
		os.Setenv("ERP_LOCK_TTL", "10s")
		os.Setenv("ERP_INVENTORY_MAX_SWAP_ATTEMPTS", "8")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "returns-test", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.True(t, cfg.Kafka.Enabled())
		assert.Equal(t, []string{"kafka-1:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, "returns.audit", cfg.Kafka.Topic)
		assert.True(t, cfg.Lock.Enabled)
		assert.Equal(t, 10*time.Second, cfg.Lock.TTL)
		assert.Equal(t, 8, cfg.Inventory.MaxSwapAttempts)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("ERP_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("ERP_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects negative swap attempts", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("ERP_INVENTORY_MAX_SWAP_ATTEMPTS", "-2")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_swap_attempts")
	})

	t.Run("rejects sub-second lock ttl when locking is enabled", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("ERP_LOCK_ENABLED", "true")
		os.Setenv("ERP_LOCK_TTL", "100ms")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lock.ttl")
	})

	t.Run("rejects tight reconciliation interval", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("ERP_RECONCILIATION_ENABLED", "true")
		os.Setenv("ERP_RECONCILIATION_INTERVAL", "5s")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reconciliation.interval")
	})

	t.Run("rejects negative settle window", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("ERP_RECONCILIATION_SETTLE_WINDOW", "-1m")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reconciliation.settle_window")
	})

	t.Run("rejects sampling ratio out of range", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("ERP_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	t.Run("requires database.password in production", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("ERP_APP_ENV", "production")
		os.Setenv("ERP_DATABASE_SSLMODE", "require")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("ERP_APP_ENV", "production")
		os.Setenv("ERP_DATABASE_PASSWORD", "secure-password")
		os.Setenv("ERP_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("forbids full SQL tracing in production", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("ERP_APP_ENV", "production")
		os.Setenv("ERP_DATABASE_PASSWORD", "secure-password")
		os.Setenv("ERP_DATABASE_SSLMODE", "require")
		os.Setenv("ERP_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})

	t.Run("requires restricted swagger in production", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("ERP_APP_ENV", "production")
		os.Setenv("ERP_DATABASE_PASSWORD", "secure-password")
		os.Setenv("ERP_DATABASE_SSLMODE", "require")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "swagger.allowed_ips")

		os.Setenv("ERP_SWAGGER_ALLOWED_IPS", "10.0.0.0/8,127.0.0.1")
		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.Swagger.Enabled)
		assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.Swagger.AllowedIPs)
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("ERP_APP_ENV", "production")
		os.Setenv("ERP_DATABASE_PASSWORD", "secure-password")
		os.Setenv("ERP_DATABASE_SSLMODE", "require")
		os.Setenv("ERP_SWAGGER_ENABLED", "false")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
		assert.False(t, cfg.Swagger.Enabled)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "/testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}
