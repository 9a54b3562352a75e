package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"strings"
	"time"
)

// ErrTransient marks an error as worth retrying regardless of its message
var ErrTransient = errors.New("transient ledger error")

// ExponentialBackoffStrategy retries recoverable read failures, doubling the
// wait after each attempt up to maxDelay. Waits carry equal jitter so that
// concurrent readers do not retry in lockstep.
type ExponentialBackoffStrategy struct {
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
}

// NewExponentialBackoffStrategy creates a new ExponentialBackoffStrategy
func NewExponentialBackoffStrategy(maxRetries int, initialDelay, maxDelay time.Duration) *ExponentialBackoffStrategy {
	return &ExponentialBackoffStrategy{
		maxRetries:   maxRetries,
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
	}
}

// Execute runs operation until it succeeds, fails with an unrecoverable
// error, exhausts the attempts, or ctx ends
func (s *ExponentialBackoffStrategy) Execute(ctx context.Context, name string, operation Operation) error {
	attempts := s.maxRetries + 1

	var err error
	for attempt := 1; ; attempt++ {
		if err = operation(ctx); err == nil {
			if attempt > 1 {
				slog.Info("Ledger read recovered", "operation", name, "attempt", attempt)
			}
			return nil
		}
		if !IsRecoverable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		wait := s.backoff(attempt)
		slog.Warn("Ledger read failed, backing off",
			"operation", name,
			"attempt", attempt,
			"max_attempts", attempts,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: gave up after %d attempts: %w", name, attempt, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, err)
}

// backoff returns the wait before the next attempt, in [d/2, d] where d is
// initialDelay doubled per previous attempt and capped at maxDelay
func (s *ExponentialBackoffStrategy) backoff(attempt int) time.Duration {
	d := s.initialDelay
	for i := 1; i < attempt && d < s.maxDelay; i++ {
		d *= 2
	}
	d = min(d, s.maxDelay)

	half := d / 2
	if half <= 0 {
		return d
	}
	return half + time.Duration(rand.Int63n(int64(half+1)))
}

// Name returns the strategy name
func (s *ExponentialBackoffStrategy) Name() string {
	return "ExponentialBackoff"
}

var recoverableMessages = []string{
	"connection reset",
	"connection refused",
	"timeout",
	"temporary failure",
	"network is unreachable",
	"broken pipe",
	"eof",
	"no such host",
	"too many requests",
	"service unavailable",
}

// IsRecoverable reports whether a failed read is worth repeating. ErrTransient
// and network timeouts always are; cancellation never is; anything else is
// judged by its message.
func IsRecoverable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrTransient):
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range recoverableMessages {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
