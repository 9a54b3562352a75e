package retry

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds retry configuration for ledger reads
type Config struct {
	Enabled      bool
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// LoadConfig reads RETRY_ENABLED, RETRY_MAX_RETRIES, RETRY_INITIAL_DELAY and
// RETRY_MAX_DELAY. Delays are Go durations ("250ms", "5s"); unparsable values
// fall back to the defaults.
func LoadConfig() Config {
	cfg := Config{
		Enabled:      true,
		MaxRetries:   3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}

	if v, ok := lookup("RETRY_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Enabled = b
		}
	}
	if v, ok := lookup("RETRY_MAX_RETRIES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRetries = n
		}
	}
	if v, ok := lookup("RETRY_INITIAL_DELAY"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.InitialDelay = d
		}
	}
	if v, ok := lookup("RETRY_MAX_DELAY"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MaxDelay = d
		}
	}
	return cfg
}

// Validate rejects policies that could never wait or would wait backwards
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("RETRY_MAX_RETRIES must not be negative: %d", c.MaxRetries)
	}
	if c.InitialDelay <= 0 || c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("invalid retry delays: initial=%s max=%s", c.InitialDelay, c.MaxDelay)
	}
	return nil
}

func lookup(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
