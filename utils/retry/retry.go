// Package retry wraps the shared backoff policy used for flaky upstream
// calls: a fixed attempt budget with exponential delay, where non-success
// HTTP statuses are retryable and parse failures are not.
package retry

import (
	"context"
	"fmt"
	"time"

	retrygo "github.com/avast/retry-go/v4"
)

// Config carries the tunables from settings.
type Config struct {
	Attempts  int
	BaseDelay time.Duration
}

// DefaultConfig matches the settings defaults.
func DefaultConfig() Config {
	return Config{Attempts: 3, BaseDelay: 300 * time.Millisecond}
}

// Do runs fn up to cfg.Attempts times with exponential backoff, honoring ctx
// cancellation between attempts. The final attempt's error is returned when
// all retries are exhausted.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := cfg.BaseDelay
	if delay <= 0 {
		delay = 300 * time.Millisecond
	}
	return retrygo.Do(
		fn,
		retrygo.Context(ctx),
		retrygo.Attempts(uint(attempts)),
		retrygo.Delay(delay),
		retrygo.DelayType(retrygo.BackOffDelay),
		retrygo.LastErrorOnly(true),
	)
}

// Unrecoverable marks err as a hard failure that aborts remaining attempts,
// e.g. a malformed body on a 2xx response.
func Unrecoverable(err error) error {
	return retrygo.Unrecoverable(err)
}

// StatusError reports a non-success HTTP status. It is retryable.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Status, e.URL)
}
