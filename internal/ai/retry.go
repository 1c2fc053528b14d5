package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RetryConfig configures the retry behavior for model calls.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for the Gemini API.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
	}
}

// rateLimitPatterns are error substrings that mean "slow down". Only these
// are retried; every other failure propagates immediately. Matched
// case-insensitively against err.Error() because the provider SDK does not
// expose typed errors for quota exhaustion.
var rateLimitPatterns = []string{
	"429",
	"too many requests",
	"rate limit",
	"quota",
	"resource exhausted",
	"resource_exhausted",
}

// rateLimited reports whether err is a rate-limit signal from the model API.
func rateLimited(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(), rateLimitPatterns...)
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// nextDelay advances the exponential backoff, capped at MaxInterval.
func nextDelay(cur time.Duration, cfg RetryConfig) time.Duration {
	return min(cur*2, cfg.MaxInterval)
}

// withRetry executes fn with the process-wide throttle applied before EACH
// attempt, retrying rate-limit errors with exponential backoff. Non-rate-limit
// errors fail immediately.
func (c *Client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	delay := c.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limit wait: %w", err)
			}
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				c.logger.Debug("model call recovered",
					"op", op,
					"attempts", attempt+1,
					"elapsed", time.Since(start),
				)
			}
			return nil
		}

		lastErr = err

		if !rateLimited(err) {
			return fmt.Errorf("%s: %w", op, err)
		}

		// Last attempt - don't sleep
		if attempt == c.retry.MaxRetries {
			break
		}

		c.logger.Warn("model rate limited, retrying",
			"op", op,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = nextDelay(delay, c.retry)
		}
	}

	return fmt.Errorf("%s after %d retries (elapsed: %v): %w",
		op, c.retry.MaxRetries, time.Since(start), lastErr)
}
