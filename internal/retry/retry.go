package retry

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// Notify is called before each sleep with the attempt that just failed.
type Notify func(attempt int, backoff time.Duration, err error)

// Policy configures Do.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Notify         Notify
}

// Do executes fn with exponential backoff until it succeeds, maxAttempts is
// reached, or ctx is done. The backoff doubles after each failed attempt
// starting from InitialBackoff; rate-limited attempts wait twice as long.
// Non-retryable errors (like 401, 404) return immediately.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	backoff := p.InitialBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !IsRetryable(lastErr) && !IsRateLimited(lastErr) {
			return lastErr
		}

		// Don't sleep after the last attempt
		if attempt < maxAttempts {
			sleep := backoff
			if IsRateLimited(lastErr) {
				sleep = backoff * 2
			}
			if p.Notify != nil {
				p.Notify(attempt, sleep, lastErr)
			}

			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(lastErr, ctx.Err())
			case <-timer.C:
			}
			backoff *= 2
		}
	}

	return lastErr
}

// IsRetryable returns true if the error is a transient error that should be
// retried: network timeouts, connection failures and 5xx responses.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode() >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "temporary failure")
}

// IsRateLimited returns true if the error indicates rate limiting (HTTP 429).
func IsRateLimited(err error) bool {
	var sc StatusCoder
	return errors.As(err, &sc) && sc.StatusCode() == 429
}
