package retry

import (
	"context"
	"log/slog"
)

// Strategy defines the interface for retry strategies applied to read-only ledger calls
type Strategy interface {
	// Execute runs the named operation with the configured retry logic
	Execute(ctx context.Context, name string, operation Operation) error

	// Name returns the name of the strategy for logging
	Name() string
}

// Operation is a function that can be retried. It must be idempotent.
type Operation func(ctx context.Context) error

// NewStrategy creates a retry strategy based on configuration
func NewStrategy(config Config) Strategy {
	if !config.Enabled {
		slog.Info("Ledger read retry disabled, using NoRetryStrategy")
		return NewNoRetryStrategy()
	}

	slog.Info("Ledger read retry enabled, using ExponentialBackoffStrategy",
		"max_retries", config.MaxRetries,
		"initial_delay", config.InitialDelay,
		"max_delay", config.MaxDelay,
	)

	return NewExponentialBackoffStrategy(
		config.MaxRetries,
		config.InitialDelay,
		config.MaxDelay,
	)
}
