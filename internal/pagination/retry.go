package pagination

import (
	"context"
	"errors"
	"time"

	"genstudio/internal/apiclient"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 4 * time.Second
	defaultLoadTimeout    = 2 * time.Minute
)

// retryDelay decides whether a failed read should be attempted again and how
// long to wait first. attempt is 1-based.
func (c *Cache) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if attempt >= c.attempts || err == nil {
		return 0, false
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return 0, false
	}
	if !apiclient.IsRetryable(err) {
		return 0, false
	}
	var te *apiclient.TransportError
	if errors.As(err, &te) && te.RetryAfter > 0 {
		return c.capDelay(te.RetryAfter), true
	}
	return c.backoffDelay(attempt), true
}

// backoffDelay doubles the base delay per attempt: 1 -> base, 2 -> base*2.
func (c *Cache) backoffDelay(attempt int) time.Duration {
	if c.baseDelay <= 0 {
		return 0
	}
	if attempt <= 0 {
		attempt = 1
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		if delay > c.maxDelay/2 {
			delay = c.maxDelay
			break
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Cache) capDelay(delay time.Duration) time.Duration {
	if c.maxDelay > 0 && delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
