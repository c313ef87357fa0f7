package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrCircuitOpen is returned without touching the network while the
	// breaker is open or its half-open trial slot is taken.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTimeout is returned when a single attempt exceeds the request timeout.
	ErrTimeout = errors.New("request timed out")
)

// StatusError reports a retryable HTTP status. The response body is still
// open so the final response can be handed back to the caller.
type StatusError struct {
	Response   *http.Response
	retryAfter time.Duration
	hasHint    bool
}

func newStatusError(resp *http.Response) *StatusError {
	e := &StatusError{Response: resp}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		e.retryAfter, e.hasHint = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	}
	return e
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %s", e.Response.Status)
}

func (e *StatusError) Temporary() bool { return true }

// RetryAfter returns the wait requested through the Retry-After header.
func (e *StatusError) RetryAfter() (time.Duration, bool) {
	return e.retryAfter, e.hasHint
}

// parseRetryAfter accepts either delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// retryableStatus reports whether an HTTP status is worth another attempt.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// IsCircuitOpen reports whether err came from an open breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// IsTimeout reports whether err came from the per-attempt timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
