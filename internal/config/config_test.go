package config

import (
	"testing"
	"time"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zblog/internal/ledger/retry"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"LOG_LEVEL", "API_PORT", "NETWORK_PASSPHRASE", "SIGNER_SEED", "DECRYPTION_DURATION_DAYS",
		"CONTENT_BACKEND", "SESSION_BACKEND", "DEBUG_ENDPOINTS", "RETRY_ENABLED",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, network.TestNetworkPassphrase, cfg.NetworkPassphrase)
	assert.Equal(t, 365, cfg.DecryptionDurationDays)
	assert.Equal(t, BackendMemory, cfg.ContentBackend)
	assert.Equal(t, BackendMemory, cfg.SessionBackend)
	assert.False(t, cfg.DebugEndpoints)
	assert.True(t, cfg.Retry.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	seed := keypair.MustRandom().Seed()
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("API_PORT", "9090")
	t.Setenv("SIGNER_SEED", seed)
	t.Setenv("CONTENT_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://zblog@localhost/zblog")
	t.Setenv("SESSION_BACKEND", "redis")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("DEBUG_ENDPOINTS", "true")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.APIPort)
	assert.Equal(t, seed, cfg.SignerSeed)
	assert.Equal(t, BackendPostgres, cfg.ContentBackend)
	assert.Equal(t, BackendRedis, cfg.SessionBackend)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.True(t, cfg.DebugEndpoints)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LogLevel:               "info",
			APIPort:                8080,
			NetworkPassphrase:      network.TestNetworkPassphrase,
			DecryptionDurationDays: 365,
			ContentBackend:         BackendMemory,
			SessionBackend:         BackendMemory,
			Retry:                  retry.Config{Enabled: true, MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Second},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"port out of range", func(c *Config) { c.APIPort = 70000 }},
		{"missing passphrase", func(c *Config) { c.NetworkPassphrase = "" }},
		{"malformed seed", func(c *Config) { c.SignerSeed = "SNOTASEED" }},
		{"address instead of seed", func(c *Config) { c.SignerSeed = keypair.MustRandom().Address() }},
		{"zero duration", func(c *Config) { c.DecryptionDurationDays = 0 }},
		{"postgres without url", func(c *Config) { c.ContentBackend = BackendPostgres }},
		{"s3 without bucket", func(c *Config) { c.ContentBackend = BackendS3; c.S3Endpoint = "minio:9000" }},
		{"unknown content backend", func(c *Config) { c.ContentBackend = "badger" }},
		{"redis without addr", func(c *Config) { c.SessionBackend = BackendRedis }},
		{"unknown session backend", func(c *Config) { c.SessionBackend = "file" }},
		{"inverted retry delays", func(c *Config) { c.Retry.MaxDelay = 0 }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRetryStrategy(t *testing.T) {
	cfg := &Config{Retry: retry.Config{Enabled: false}}
	assert.IsType(t, &retry.NoRetryStrategy{}, cfg.RetryStrategy())

	cfg.Retry = retry.Config{Enabled: true, MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Second}
	assert.IsType(t, &retry.ExponentialBackoffStrategy{}, cfg.RetryStrategy())
}
