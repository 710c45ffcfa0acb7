package github

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	headerRateLimit     = "X-RateLimit-Limit"
	headerRateRemaining = "X-RateLimit-Remaining"
	headerRateReset     = "X-RateLimit-Reset"
	headerRetryAfter    = "Retry-After"

	defaultRequestsPerSecond = 5
)

// ErrQuotaExhausted is returned by RateLimiter.Wait while GitHub reports no remaining requests.
var ErrQuotaExhausted = eris.New("github rate limit quota exhausted")

// RateLimiter throttles outbound requests proactively and tracks the quota GitHub reports.
type RateLimiter struct {
	mu        sync.Mutex
	remaining int
	limit     int
	resetTime time.Time
	known     bool
	bucket    *rate.Limiter
	now       func() time.Time
}

// NewRateLimiter allows requestsPerSecond outbound calls; non-positive values use the default.
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRequestsPerSecond
	}
	return &RateLimiter{
		bucket: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		now:    time.Now,
	}
}

// Wait blocks on the token bucket, then fails fast when the reported quota is spent
// and the reset time has not passed.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.Throttle(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.known && r.remaining <= 0 && r.now().Before(r.resetTime) {
		return eris.Wrapf(ErrQuotaExhausted, "resets at %s", r.resetTime.UTC().Format(time.RFC3339))
	}
	return nil
}

// Throttle blocks on the token bucket only. It is used for a retry GitHub explicitly
// asked for with Retry-After, which takes precedence over the recorded quota.
func (r *RateLimiter) Throttle(ctx context.Context) error {
	if err := r.bucket.Wait(ctx); err != nil {
		return eris.Wrap(err, "waiting for github throttle")
	}
	return nil
}

// UpdateFromResponse records quota headers from a GitHub response.
func (r *RateLimiter) UpdateFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if remaining := resp.Header.Get(headerRateRemaining); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			r.remaining = val
			r.known = true
		}
	}

	if limit := resp.Header.Get(headerRateLimit); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			r.limit = val
		}
	}

	if reset := resp.Header.Get(headerRateReset); reset != "" {
		if val, err := strconv.ParseInt(reset, 10, 64); err == nil {
			r.resetTime = time.Unix(val, 0)
		}
	}
}

// Remaining returns the last reported remaining quota and whether any was reported.
func (r *RateLimiter) Remaining() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining, r.known
}

// ResetTime returns the last reported quota reset time.
func (r *RateLimiter) ResetTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetTime
}
