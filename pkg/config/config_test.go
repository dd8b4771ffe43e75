package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("scamshield")
	require.NoError(t, err)

	assert.Equal(t, "scamshield", cfg.Server.ServiceName)
	assert.Equal(t, 10, cfg.RateLimit.PerMinute)
	assert.Equal(t, 100, cfg.RateLimit.PerHour)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, 0.001, cfg.Blocklist.FalsePositiveRate)
	assert.Equal(t, 3*time.Second, cfg.Enrichment.LookupTimeout)
	assert.Equal(t, 5000, cfg.Limits.MaxTextLength)
	assert.Equal(t, 500, cfg.Limits.MaxQueryLength)
	assert.Len(t, cfg.Enrichment.UsernamePlatforms, 2)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "3")
	t.Setenv("RATE_LIMIT_BACKEND", "redis")
	t.Setenv("ENRICHMENT_LOOKUP_TIMEOUT", "1500ms")
	t.Setenv("BLOCKLIST_FP_RATE", "0.01")
	t.Setenv("USERNAME_PLATFORMS", " a/%s , ,b/%s")

	cfg, err := Load("scamshield")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.RateLimit.PerMinute)
	assert.Equal(t, "redis", cfg.RateLimit.Backend)
	assert.Equal(t, 1500*time.Millisecond, cfg.Enrichment.LookupTimeout)
	assert.Equal(t, 0.01, cfg.Blocklist.FalsePositiveRate)
	assert.Equal(t, []string{"a/%s", "b/%s"}, cfg.Enrichment.UsernamePlatforms)
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero per minute", "RATE_LIMIT_PER_MINUTE", "0"},
		{"unknown backend", "RATE_LIMIT_BACKEND", "memcached"},
		{"fp rate too high", "BLOCKLIST_FP_RATE", "1.5"},
		{"negative text limit", "MAX_TEXT_LENGTH", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load("scamshield")
			assert.Error(t, err)
		})
	}
}

func TestGetEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "soon")

	assert.Equal(t, 7, getEnvAsInt("X_INT", 7))
	assert.True(t, getEnvAsBool("X_BOOL", true))
	assert.Equal(t, time.Second, getEnvAsDuration("X_DUR", time.Second))
}

func TestDatabaseConfig_DSNAndURL(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: "5432", User: "u", Password: "p", DBName: "scam", SSLMode: "disable",
	}

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=scam sslmode=disable", cfg.DSN())
	assert.Equal(t, "pgx5://u:p@db:5432/scam?sslmode=disable", cfg.URL())

	cfg.Password = "p@ss/w:rd"
	assert.Equal(t, "pgx5://u:p%40ss%2Fw%3Ard@db:5432/scam?sslmode=disable", cfg.URL())
}

func TestRedisConfig_RedisAddr(t *testing.T) {
	cfg := RedisConfig{Host: "redis.example.com", Port: "6380"}
	assert.Equal(t, "redis.example.com:6380", cfg.RedisAddr())
}
