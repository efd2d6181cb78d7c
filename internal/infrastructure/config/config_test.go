package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "test",
			Password: "test",
			Database: "test_db",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Settlement: SettlementConfig{
			Interval:   24 * time.Hour,
			HoldPeriod: 7 * 24 * time.Hour,
			LockTTL:    2 * time.Hour,
		},
		Retry: RetryConfig{
			Interval: 6 * time.Hour,
			LockTTL:  time.Hour,
		},
		Processor:     ProcessorConfig{BreakerTripRatio: 0.5},
		Worker:        WorkerConfig{OutboxBatchSize: 100},
		Observability: ObservabilityConfig{LogLevel: "info", LogFormat: "json"},
	}
}

func TestConfig_Validate_Success(t *testing.T) {
	err := validConfig().Validate()
	assert.NoError(t, err)
}

func TestConfig_Validate_InvalidServerPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"port too low", 0},
		{"port negative", -1},
		{"port too high", 99999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.Port = tt.port

			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "server.port")
		})
	}
}

func TestConfig_Validate_Fields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }, "read_timeout"},
		{"write timeout", func(c *Config) { c.Server.WriteTimeout = 0 }, "write_timeout"},
		{"database host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"database port", func(c *Config) { c.Database.Port = 0 }, "database.port"},
		{"redis port", func(c *Config) { c.Redis.Port = 0 }, "redis.port"},
		{"settlement interval", func(c *Config) { c.Settlement.Interval = 0 }, "settlement.interval"},
		{"negative hold period", func(c *Config) { c.Settlement.HoldPeriod = -time.Hour }, "settlement.hold_period"},
		{"settlement lock ttl", func(c *Config) { c.Settlement.LockTTL = 0 }, "settlement.lock_ttl"},
		{"retry interval", func(c *Config) { c.Retry.Interval = 0 }, "retry.interval"},
		{"retry lock ttl", func(c *Config) { c.Retry.LockTTL = 0 }, "retry.lock_ttl"},
		{"mock failure rate", func(c *Config) { c.Processor.MockFailureRate = 1.5 }, "processor.mock_failure_rate"},
		{"breaker ratio", func(c *Config) { c.Processor.BreakerTripRatio = -0.1 }, "processor.breaker_trip_ratio"},
		{"outbox batch size", func(c *Config) { c.Worker.OutboxBatchSize = 0 }, "worker.outbox_batch_size"},
		{"log format", func(c *Config) { c.Observability.LogFormat = "logfmt" }, "observability.log_format"},
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "auth.jwt_secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_Validate_ZeroHoldPeriodAllowed(t *testing.T) {
	cfg := validConfig()
	cfg.Settlement.HoldPeriod = 0
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := &Config{}

	err := cfg.Validate()
	require.Error(t, err)

	// Should contain multiple error messages
	errStr := err.Error()
	assert.Contains(t, errStr, "server.port")
	assert.Contains(t, errStr, "read_timeout")
	assert.Contains(t, errStr, "write_timeout")
	assert.Contains(t, errStr, "database.host")
	assert.Contains(t, errStr, "database.port")
	assert.Contains(t, errStr, "redis.port")
	assert.Contains(t, errStr, "settlement.interval")
	assert.Contains(t, errStr, "retry.interval")
	assert.Contains(t, errStr, "worker.outbox_batch_size")
}

func TestConfig_Validate_Production(t *testing.T) {
	t.Setenv("ENV", "production")

	cfg := validConfig()
	cfg.Database.Password = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.password")
	assert.Contains(t, err.Error(), "auth.jwt_secret")
	assert.Contains(t, err.Error(), "processor.webhook_secret")
}

func TestLoad_DefaultsAndEnvironment(t *testing.T) {
	t.Setenv("SETTLEMENT_DATABASE_HOST", "db.internal")
	t.Setenv("SETTLEMENT_SETTLEMENT_HOLD_PERIOD", "72h")
	t.Setenv("SETTLEMENT_RETRY_CONCURRENCY", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 72*time.Hour, cfg.Settlement.HoldPeriod)
	assert.Equal(t, 2, cfg.Retry.Concurrency)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Settlement.Interval)
	assert.Equal(t, 6*time.Hour, cfg.Retry.Interval)
	assert.Equal(t, "transfer", cfg.Settlement.PaymentMethod)
	assert.Equal(t, 5*time.Minute, cfg.Processor.SignatureTolerance)
	assert.Equal(t, "settlement:notifications", cfg.Worker.NotificationStream)
	assert.Equal(t, "settlement-1", cfg.InstanceID)
	assert.Equal(t, "json", cfg.Observability.LogFormat)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.example.com",
		Port:     5432,
		User:     "app_user",
		Password: "secret",
		Database: "settlement_db",
		SSLMode:  "require",
	}

	assert.Equal(t, "host=db.example.com port=5432 user=app_user password=secret dbname=settlement_db sslmode=require", cfg.DatabaseDSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{Host: "redis.example.com", Port: 6379}
	assert.Equal(t, "redis.example.com:6379", cfg.RedisAddr())
}
