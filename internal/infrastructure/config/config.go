package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App            AppConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Log            LogConfig
	HTTP           HTTPConfig
	Telemetry      TelemetryConfig
	Profiling      ProfilingConfig
	Kafka          KafkaConfig
	Lock           LockConfig
	Breaker        BreakerConfig
	Reconciliation ReconciliationConfig
	Inventory      InventoryConfig
	Swagger        SwaggerConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds the postgres connection and pool settings.
// ConnMaxLifetime and ConnMaxIdleTime are in minutes.
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type HTTPConfig struct {
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
}

// TelemetryConfig holds OpenTelemetry export settings. CollectorEndpoint is
// the host:port of an OTLP gRPC collector; Insecure is for development only.
// DBLogFullSQL puts statements with their bound values into spans.
type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"`
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"`
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

// ProfilingConfig holds the Pyroscope continuous profiling settings.
// ApplicationName defaults to the telemetry service name.
type ProfilingConfig struct {
	Enabled           bool     `mapstructure:"enabled"`
	ServerAddress     string   `mapstructure:"server_address"`
	ApplicationName   string   `mapstructure:"application_name"`
	BasicAuthUser     string   `mapstructure:"basic_auth_user"`
	BasicAuthPassword string   `mapstructure:"basic_auth_password"`
	ProfileTypes      []string `mapstructure:"profile_types"`
	SpanProfiles      bool     `mapstructure:"span_profiles"`
}

// KafkaConfig holds settings of the return event forwarder.
// Forwarding is disabled when no brokers are configured. An event ID is
// forwarded once per DedupWindow; zero forwards every delivery.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DedupWindow  time.Duration `mapstructure:"dedup_window"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// LockConfig holds the distributed transition lock settings
type LockConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// BreakerConfig holds circuit breaker settings for the ledger
type BreakerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

// ReconciliationConfig controls the periodic repair job. Returns written within
// SettleWindow are left for a later run.
type ReconciliationConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SettleWindow time.Duration `mapstructure:"settle_window"`
}

// SwaggerConfig controls the API documentation endpoint. An empty AllowedIPs
// admits every client.
type SwaggerConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	AllowedIPs []string `mapstructure:"allowed_ips"`
}

type InventoryConfig struct {
	MaxSwapAttempts int `mapstructure:"max_swap_attempts"`
}

// defaults lists every key viper should know about. Keys missing here are
// not picked up from the environment by Unmarshal.
var defaults = map[string]any{
	"app.name": "returns-service",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "erp",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":     15 * time.Second,
	"http.write_timeout":    15 * time.Second,
	"http.idle_timeout":     60 * time.Second,
	"http.shutdown_timeout": 30 * time.Second,
	"http.max_header_bytes": 1 << 20,
	"http.max_body_size":    int64(1 << 20),
	"http.trusted_proxies":  []string{},

	"swagger.enabled":     true,
	"swagger.allowed_ips": []string{},

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "returns-service",
	"telemetry.insecure":                false,
	"telemetry.metrics_enabled":         false,
	"telemetry.metrics_interval":        60 * time.Second,
	"telemetry.logs_enabled":            false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,

	"profiling.enabled":             false,
	"profiling.server_address":      "http://localhost:4040",
	"profiling.application_name":    "",
	"profiling.basic_auth_user":     "",
	"profiling.basic_auth_password": "",
	"profiling.profile_types":       []string{},
	"profiling.span_profiles":       false,

	"kafka.brokers":       []string{},
	"kafka.topic":         "returns.events",
	"kafka.batch_timeout": 50 * time.Millisecond,
	"kafka.write_timeout": 10 * time.Second,
	"kafka.dedup_window":  24 * time.Hour,

	"lock.enabled": false,
	"lock.ttl":     30 * time.Second,
	"lock.prefix":  "returns:transition:",

	"breaker.enabled":              false,
	"breaker.max_requests":         1,
	"breaker.interval":             60 * time.Second,
	"breaker.timeout":              30 * time.Second,
	"breaker.consecutive_failures": 5,

	"reconciliation.enabled":       false,
	"reconciliation.interval":      15 * time.Minute,
	"reconciliation.timeout":       5 * time.Minute,
	"reconciliation.settle_window": 2 * time.Minute,

	"inventory.max_swap_attempts": 5,
}

// Load reads config.toml from the working directory or /app, then applies
// ERP_ prefixed environment variables over it (ERP_DATABASE_PASSWORD sets
// database.password). A missing file is fine.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("ERP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if cfg.Profiling.ApplicationName == "" {
		cfg.Profiling.ApplicationName = cfg.Telemetry.ServiceName
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Database.MaxOpenConns <= 0:
		return errors.New("database.max_open_conns must be positive")
	case c.Database.MaxIdleConns < 0:
		return errors.New("database.max_idle_conns cannot be negative")
	case c.Database.MaxIdleConns > c.Database.MaxOpenConns:
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	case c.Inventory.MaxSwapAttempts < 1:
		return errors.New("inventory.max_swap_attempts must be at least 1")
	case c.Lock.Enabled && c.Lock.TTL < time.Second:
		return fmt.Errorf("lock.ttl must be at least 1s, got %s", c.Lock.TTL)
	case c.Reconciliation.Enabled && c.Reconciliation.Interval < time.Minute:
		return fmt.Errorf("reconciliation.interval must be at least 1m, got %s", c.Reconciliation.Interval)
	case c.Reconciliation.SettleWindow < 0:
		return fmt.Errorf("reconciliation.settle_window cannot be negative, got %s", c.Reconciliation.SettleWindow)
	case c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1:
		return fmt.Errorf("telemetry.sampling_ratio must be within [0, 1], got %g", c.Telemetry.SamplingRatio)
	}

	if c.App.Env != "production" {
		return nil
	}
	switch {
	case c.Database.Password == "":
		return errors.New("database.password is required in production")
	case c.Database.SSLMode == "disable":
		return errors.New("database.sslmode cannot be 'disable' in production")
	case c.Telemetry.DBLogFullSQL:
		return errors.New("telemetry.db_log_full_sql must be false in production, spans would carry bound values")
	case c.Swagger.Enabled && len(c.Swagger.AllowedIPs) == 0:
		return errors.New("swagger must be disabled or restricted with swagger.allowed_ips in production")
	}
	return nil
}

// DSN returns a postgres URL with user and password escaped
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}
