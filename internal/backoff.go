package internal

import (
	"context"
	"fmt"
	"time"
)

type backoffConfig struct {
	isRetryable  func(error) bool
	onRetry      func(attempt int, err error, delay time.Duration)
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
}

// BackoffOption configures exponential backoff behavior.
type BackoffOption func(*backoffConfig)

// WithBackoffMaxAttempts sets the maximum number of attempts, 3 by default.
func WithBackoffMaxAttempts(n int) BackoffOption {
	return func(c *backoffConfig) {
		c.maxAttempts = n
	}
}

// WithBackoffInitialDelay sets the delay before the first retry. The delay doubles
// with each subsequent attempt. Default is 1 second.
func WithBackoffInitialDelay(d time.Duration) BackoffOption {
	return func(c *backoffConfig) {
		c.initialDelay = d
	}
}

// WithBackoffMaxDelay caps the doubling delay. Zero means uncapped.
func WithBackoffMaxDelay(d time.Duration) BackoffOption {
	return func(c *backoffConfig) {
		c.maxDelay = d
	}
}

// WithBackoffRetryable sets the function that decides whether an error is retried.
// Without it nothing is retried.
func WithBackoffRetryable(fn func(error) bool) BackoffOption {
	return func(c *backoffConfig) {
		c.isRetryable = fn
	}
}

// WithBackoffOnRetry registers a hook called before sleeping for a retry.
func WithBackoffOnRetry(fn func(attempt int, err error, delay time.Duration)) BackoffOption {
	return func(c *backoffConfig) {
		c.onRetry = fn
	}
}

// ExponentialBackoff runs fn until it succeeds, returns a non-retryable error,
// or maxAttempts is reached. Sleeps honor ctx.
func ExponentialBackoff[T any](ctx context.Context, fn func() (T, error), opts ...BackoffOption) (T, error) {
	config := backoffConfig{
		maxAttempts:  3,
		initialDelay: time.Second,
		isRetryable:  func(error) bool { return false },
	}
	for _, opt := range opts {
		opt(&config)
	}

	var zero T
	var lastErr error

	for attempt := range config.maxAttempts {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !config.isRetryable(err) {
			return zero, err
		}
		lastErr = err

		if attempt == config.maxAttempts-1 {
			break
		}
		delay := config.initialDelay * time.Duration(1<<attempt)
		if config.maxDelay > 0 && delay > config.maxDelay {
			delay = config.maxDelay
		}
		if config.onRetry != nil {
			config.onRetry(attempt+1, err, delay)
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", config.maxAttempts, lastErr)
}
