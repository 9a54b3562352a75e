package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/stellar/go/network"
	"github.com/stellar/go/strkey"

	"zblog/internal/ledger/retry"
	"zblog/internal/session"
)

// Content backends
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
	BackendRedis    = "redis"
)

type Config struct {
	// Log level ( debug, info, warn, error )
	LogLevel string

	// HTTP API port
	APIPort int

	// Network passphrase ( mainnet or testnet )
	NetworkPassphrase string

	// Secret seed of the signing identity ( empty means a random one per run )
	SignerSeed string

	// Validity window of decryption signatures in days
	DecryptionDurationDays int

	// Content store: memory, postgres or s3
	ContentBackend string
	DatabaseURL    string

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool

	// Signature cache: memory or redis
	SessionBackend string
	RedisAddr      string
	RedisDB        int
	RedisPassword  string

	// Exposes GET|DELETE /debug/content
	DebugEndpoints bool

	// Retry policy for ledger reads
	Retry retry.Config
}

// Load returns the configuration read from the environment.
// Call godotenv.Load() first to pick up a .env file.
func Load() *Config {
	return &Config{
		LogLevel:               strings.ToLower(getEnv("LOG_LEVEL", "info")),
		APIPort:                getEnvAsInt("API_PORT", 8080),
		NetworkPassphrase:      getEnv("NETWORK_PASSPHRASE", network.TestNetworkPassphrase),
		SignerSeed:             os.Getenv("SIGNER_SEED"),
		DecryptionDurationDays: getEnvAsInt("DECRYPTION_DURATION_DAYS", session.DefaultDurationDays),

		ContentBackend: strings.ToLower(getEnv("CONTENT_BACKEND", BackendMemory)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		S3Endpoint:  getEnv("S3_ENDPOINT", "localhost:9000"),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Bucket:    getEnv("S3_BUCKET", "zblog-content"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3UseSSL:    getEnvAsBool("S3_USE_SSL", false),

		SessionBackend: strings.ToLower(getEnv("SESSION_BACKEND", BackendMemory)),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:        getEnvAsInt("REDIS_DB", 0),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),

		DebugEndpoints: getEnvAsBool("DEBUG_ENDPOINTS", false),

		Retry: retry.LoadConfig(),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT out of range: %d", c.APIPort)
	}
	if c.NetworkPassphrase == "" {
		return fmt.Errorf("NETWORK_PASSPHRASE is required")
	}
	if c.SignerSeed != "" && !strkey.IsValidEd25519SecretSeed(c.SignerSeed) {
		return fmt.Errorf("SIGNER_SEED is not a valid secret seed")
	}
	if c.DecryptionDurationDays <= 0 {
		return fmt.Errorf("DECRYPTION_DURATION_DAYS must be positive")
	}

	switch c.ContentBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres content backend")
		}
	case BackendS3:
		if c.S3Endpoint == "" || c.S3Bucket == "" {
			return fmt.Errorf("S3_ENDPOINT and S3_BUCKET are required for the s3 content backend")
		}
	default:
		return fmt.Errorf("unknown CONTENT_BACKEND %q", c.ContentBackend)
	}

	switch c.SessionBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis session backend")
		}
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend)
	}

	return c.Retry.Validate()
}

// RetryStrategy builds the read retry strategy
func (c *Config) RetryStrategy() retry.Strategy {
	return retry.NewStrategy(c.Retry)
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	val, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvAsInt(key string, defaultVal int) int {
	val, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return val
}
