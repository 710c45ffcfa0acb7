package github

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"github.com/rotisserie/eris"
)

type failureKind int

const (
	failureTerminal failureKind = iota
	failureRateLimited
	failureTimeout
)

func (k failureKind) String() string {
	switch k {
	case failureRateLimited:
		return "rate_limited"
	case failureTimeout:
		return "timeout"
	default:
		return "terminal"
	}
}

// classify decides whether err is worth retrying. parent is the caller's context; its
// cancellation is terminal even though it surfaces as a context error.
func classify(parent context.Context, err error) failureKind {
	if parent.Err() != nil {
		return failureTerminal
	}

	if eris.Is(err, ErrQuotaExhausted) {
		return failureRateLimited
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return failureRateLimited
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return failureRateLimited
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		if isRateLimitedResponse(respErr.Response) {
			return failureRateLimited
		}
		return failureTerminal
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return failureTimeout
	}

	return failureTerminal
}

func isRateLimitedResponse(resp *http.Response) bool {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		return strings.TrimSpace(resp.Header.Get(headerRateRemaining)) == "0"
	default:
		return false
	}
}

// retryDelay returns the server-requested wait when err carries one, otherwise base * 2^attempt.
// The boolean reports whether the wait came from GitHub.
func retryDelay(err error, attempt int, base time.Duration) (time.Duration, bool) {
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) && abuseErr.RetryAfter != nil && *abuseErr.RetryAfter >= 0 {
		return *abuseErr.RetryAfter, true
	}

	if resp := errorResponse(err); resp != nil {
		if wait, ok := parseRetryAfter(resp.Header.Get(headerRetryAfter)); ok {
			return wait, true
		}
	}

	return backoff(base, attempt), false
}

func backoff(base time.Duration, attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	return base * time.Duration(1<<attempt)
}

// parseRetryAfter reads a Retry-After header expressed in whole seconds.
func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

func errorResponse(err error) *http.Response {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return rateErr.Response
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return abuseErr.Response
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) {
		return respErr.Response
	}

	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
