package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Processor     ProcessorConfig     `mapstructure:"processor"`
	Settlement    SettlementConfig    `mapstructure:"settlement"`
	Retry         RetryConfig         `mapstructure:"retry"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Auth          AuthConfig          `mapstructure:"auth"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
	// WebhookRateLimit is the number of webhook deliveries accepted per minute per client IP.
	WebhookRateLimit int `mapstructure:"webhook_rate_limit"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTExpiry time.Duration `mapstructure:"jwt_expiry"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

// ProcessorConfig configures the payment processor client and webhook verification.
type ProcessorConfig struct {
	Name                string        `mapstructure:"name"`
	WebhookSecret       string        `mapstructure:"webhook_secret"`
	SignatureTolerance  time.Duration `mapstructure:"signature_tolerance"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	TransferRetries     int           `mapstructure:"transfer_retries"`
	TransferRetryDelay  time.Duration `mapstructure:"transfer_retry_delay"`
	BreakerTripRequests uint32        `mapstructure:"breaker_trip_requests"`
	BreakerTripRatio    float64       `mapstructure:"breaker_trip_ratio"`
	BreakerOpenTimeout  time.Duration `mapstructure:"breaker_open_timeout"`
	// MockFailureRate and MockLatency tune the in-process processor used when no real one is wired.
	MockFailureRate float64       `mapstructure:"mock_failure_rate"`
	MockLatency     time.Duration `mapstructure:"mock_latency"`
}

type SettlementConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	HoldPeriod      time.Duration `mapstructure:"hold_period"`
	PaymentMethod   string        `mapstructure:"payment_method"`
	Concurrency     int           `mapstructure:"concurrency"`
	TransferTimeout time.Duration `mapstructure:"transfer_timeout"`
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
}

type RetryConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	BatchSize     int           `mapstructure:"batch_size"`
	Concurrency   int           `mapstructure:"concurrency"`
	ChargeTimeout time.Duration `mapstructure:"charge_timeout"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
}

type WorkerConfig struct {
	OutboxBatchSize    int           `mapstructure:"outbox_batch_size"`
	OutboxPollInterval time.Duration `mapstructure:"outbox_poll_interval"`
	NotificationStream string        `mapstructure:"notification_stream"`
	StreamMaxLen       int64         `mapstructure:"stream_max_len"`
	MetricsPort        int           `mapstructure:"metrics_port"`
	IdempotencyTTL     time.Duration `mapstructure:"idempotency_ttl"`
	RunOnStart         bool          `mapstructure:"run_on_start"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables, e.g. SETTLEMENT_DATABASE_HOST
	v.SetEnvPrefix("SETTLEMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/settlement")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Settlement.Interval <= 0 {
		errs = append(errs, fmt.Errorf("settlement.interval must be positive"))
	}
	if c.Settlement.HoldPeriod < 0 {
		errs = append(errs, fmt.Errorf("settlement.hold_period must not be negative"))
	}
	if c.Settlement.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("settlement.lock_ttl must be positive"))
	}
	if c.Retry.Interval <= 0 {
		errs = append(errs, fmt.Errorf("retry.interval must be positive"))
	}
	if c.Retry.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("retry.lock_ttl must be positive"))
	}
	if f := c.Observability.LogFormat; f != "json" && f != "console" {
		errs = append(errs, fmt.Errorf("observability.log_format must be json or console, got %q", f))
	}
	if c.Processor.MockFailureRate < 0 || c.Processor.MockFailureRate > 1 {
		errs = append(errs, fmt.Errorf("processor.mock_failure_rate must be between 0 and 1"))
	}
	if c.Processor.BreakerTripRatio < 0 || c.Processor.BreakerTripRatio > 1 {
		errs = append(errs, fmt.Errorf("processor.breaker_trip_ratio must be between 0 and 1"))
	}
	if c.Worker.OutboxBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("worker.outbox_batch_size must be positive"))
	}

	// Production environment checks
	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, fmt.Errorf("auth.jwt_secret required in production"))
		}
		if c.Processor.WebhookSecret == "" {
			errs = append(errs, fmt.Errorf("processor.webhook_secret required in production"))
		}
	}

	// JWT secret length validation
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)
	v.SetDefault("server.webhook_rate_limit", 600)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "settlement")
	v.SetDefault("database.database", "settlement")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Processor defaults
	v.SetDefault("processor.name", "processor")
	v.SetDefault("processor.signature_tolerance", "5m")
	v.SetDefault("processor.request_timeout", "10s")
	v.SetDefault("processor.transfer_retries", 3)
	v.SetDefault("processor.transfer_retry_delay", "500ms")
	v.SetDefault("processor.breaker_trip_requests", 10)
	v.SetDefault("processor.breaker_trip_ratio", 0.5)
	v.SetDefault("processor.breaker_open_timeout", "30s")
	v.SetDefault("processor.mock_failure_rate", 0.0)
	v.SetDefault("processor.mock_latency", "50ms")

	// Settlement defaults
	v.SetDefault("settlement.interval", "24h")
	v.SetDefault("settlement.hold_period", "168h")
	v.SetDefault("settlement.payment_method", "transfer")
	v.SetDefault("settlement.concurrency", 8)
	v.SetDefault("settlement.transfer_timeout", "30s")
	v.SetDefault("settlement.lock_ttl", "2h")

	// Retry defaults
	v.SetDefault("retry.interval", "6h")
	v.SetDefault("retry.batch_size", 500)
	v.SetDefault("retry.concurrency", 8)
	v.SetDefault("retry.charge_timeout", "30s")
	v.SetDefault("retry.lock_ttl", "1h")

	// Worker defaults
	v.SetDefault("worker.outbox_batch_size", 100)
	v.SetDefault("worker.outbox_poll_interval", "2s")
	v.SetDefault("worker.notification_stream", "settlement:notifications")
	v.SetDefault("worker.stream_max_len", 100000)
	v.SetDefault("worker.metrics_port", 9091)
	v.SetDefault("worker.idempotency_ttl", "24h")
	v.SetDefault("worker.run_on_start", false)

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	// Auth defaults
	v.SetDefault("auth.jwt_expiry", "24h")

	// Instance ID
	v.SetDefault("instance_id", "settlement-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
