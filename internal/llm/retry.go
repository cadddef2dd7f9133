package llm

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// RetryConfig defines retry behavior for adapter invocations.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (0 = no retries).
	MaxRetries int
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration
	// Multiplier grows the delay after each retry.
	Multiplier float64
	// JitterFactor adds randomness to delays (0.0-1.0).
	JitterFactor float64
}

// DefaultRetryConfig returns the defaults used by both adapter families.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// IsRetryableStatusCode reports whether an HTTP status warrants a retry.
// 503 is excluded: the bridge uses it to signal "backend unavailable",
// which is permanent for the invocation.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// IsRetryableError reports whether an error warrants a retry. Context
// cancellation and deadline expiry never do.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Connection refused, resets, DNS failures are all transient here.
	return true
}

// backoffDelay computes the delay before retry attempt n (0-based) with
// exponential growth and jitter.
func (c RetryConfig) backoffDelay(attempt int) time.Duration {
	delay := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt))
	if max := float64(c.MaxDelay); delay > max {
		delay = max
	}
	if c.JitterFactor > 0 {
		jitter := delay * c.JitterFactor * (rand.Float64()*2 - 1)
		delay += jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// sleepCtx waits for d or until ctx is done, reporting whether the wait
// completed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
