// Package httpx holds small helpers for classifying and spacing out HTTP
// retries, shared by every provider adapter.
package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// NewOutboundThrottle builds a token-bucket limiter capping a provider
// adapter's outbound request rate independent of the per-company fixed
// window in internal/ratelimit: the fixed window stops one company from
// being hammered, this stops the process as a whole from exceeding a
// provider's documented QPS ceiling.
func NewOutboundThrottle(requestsPerSecond float64, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// IsRetryableHTTPStatus reports whether a response with this status code
// should be retried: request timeout, rate limit, or any 5xx.
func IsRetryableHTTPStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// HTTPStatusCoder is implemented by errors that carry an HTTP status,
// letting IsRetryableError classify them without a type switch per caller.
type HTTPStatusCoder interface {
	StatusCode() int
}

// IsRetryableError reports whether err represents a transient failure
// worth retrying: a context deadline/cancellation, a network-level
// timeout or temporary error, or a retryable HTTP status.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
	}
	var coder HTTPStatusCoder
	if errors.As(err, &coder) {
		return IsRetryableHTTPStatus(coder.StatusCode())
	}
	return false
}

// RetryAfterDuration parses a Retry-After header (seconds or HTTP-date)
// from resp, falling back to fallback if absent/unparseable, capped at max.
func RetryAfterDuration(resp *http.Response, fallback, max time.Duration) time.Duration {
	if resp == nil {
		return fallback
	}
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(h); err == nil {
		d := time.Duration(secs) * time.Second
		if d > max {
			return max
		}
		if d <= 0 {
			return fallback
		}
		return d
	}
	if when, err := http.ParseTime(h); err == nil {
		d := time.Until(when)
		if d <= 0 {
			return fallback
		}
		if d > max {
			return max
		}
		return d
	}
	return fallback
}

// JitterSleep returns base adjusted by ±20% jitter, never negative.
func JitterSleep(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	jitter := (rand.Float64()*2 - 1) * 0.20
	d := time.Duration(float64(base) * (1 + jitter))
	if d < 0 {
		d = 0
	}
	return d
}
