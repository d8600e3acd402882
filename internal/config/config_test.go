package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	for _, k := range []string{"APP_ENV", "APP_PORT", "STORE_DRIVER", "SQLITE_PATH", "SUBSCRIBER_BUFFER", "SSE_KEEPALIVE", "STAFF_ROLES"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.True(t, cfg.Dev())
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "shelters.db", cfg.SQLitePath)
	assert.Equal(t, 100, cfg.SubscriberBuffer)
	assert.Equal(t, 30*time.Second, cfg.SSEKeepAlive)
	assert.Empty(t, cfg.StaffRoles)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("SUBSCRIBER_BUFFER", "7")
	t.Setenv("SSE_KEEPALIVE", "5s")
	t.Setenv("STAFF_ROLES", " staff, coordinator ,,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Dev())
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 7, cfg.SubscriberBuffer)
	assert.Equal(t, 5*time.Second, cfg.SSEKeepAlive)
	assert.Equal(t, []string{"STAFF", "COORDINATOR"}, cfg.StaffRoles)
}

func TestLoad_ReportsAllProblems(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE_DRIVER", "mysql")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_NAME", "")
	t.Setenv("SUBSCRIBER_BUFFER", "0")

	_, err := Load()
	require.Error(t, err)
	for _, want := range []string{"JWT_SECRET", "DB_USER", "DB_NAME", "SUBSCRIBER_BUFFER"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := Config{JWTSecret: "x", StoreDriver: "postgres", SubscriberBuffer: 1, SSEKeepAlive: time.Second}
	assert.ErrorContains(t, cfg.Validate(), "STORE_DRIVER")
}

func TestEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_DUR", "soon")
	t.Setenv("X_BOOL", "maybe")
	assert.Equal(t, 3, envInt("X_INT", 3))
	assert.Equal(t, time.Minute, envDur("X_DUR", time.Minute))
	assert.True(t, envBool("X_BOOL", true))
	t.Setenv("X_BOOL", "off")
	assert.False(t, envBool("X_BOOL", true))
}

func TestLoadRateLimitConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "3s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	rl := LoadRateLimitConfig()
	assert.Equal(t, 5, rl.Capacity)
	assert.Equal(t, 1, rl.RefillTokens)
	assert.Equal(t, 3*time.Second, rl.RefillInterval)
	assert.Equal(t, 15*time.Second, rl.TTL, "ttl raised to five refill intervals")
}

func TestLoadBrokerConfig(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://u:p@mq:5672/")
	t.Setenv("AMQP_ENABLED", "true")
	t.Setenv("AMQP_MAX_BACKOFF", "10ms")

	b := LoadBrokerConfig()
	assert.True(t, b.Enabled)
	assert.Equal(t, "amqp://u:p@mq:5672/", b.URL)
	assert.Equal(t, "shelter.changes", b.Exchange)
	assert.Equal(t, "shelter.changes.audit", b.AuditQueue)
	assert.Equal(t, time.Second, b.MaxBackoff)
}

func TestLoadRedisConfig(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_PORT", "")
	t.Setenv("REDIS_TLS", "1")
	r := LoadRedisConfig()
	assert.Equal(t, "cache:6380", r.Addr)
	assert.True(t, r.TLS)

	t.Setenv("REDIS_HOST", "h")
	t.Setenv("REDIS_PORT", "1")
	assert.Equal(t, "h:1", LoadRedisConfig().Addr)
}

func TestLoadJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadJWTSecret()
	require.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cret")
	secret, err := LoadJWTSecret()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", secret)
}
