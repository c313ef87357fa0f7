package retrier

import (
	"errors"
	"time"
)

// Temporary indicates if an error condition is temporary and may succeed if retried.
type Temporary interface {
	Temporary() bool
}

// Delayer is implemented by errors that carry a server supplied wait, such as
// an HTTP Retry-After header.
type Delayer interface {
	RetryAfter() (time.Duration, bool)
}

// IsTemporary checks if the provided error implements the Temporary interface and returns true if it does.
func IsTemporary(err error) bool {
	var temp Temporary
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return false
}

// RetryAfterHint returns the wait requested by err, if any.
func RetryAfterHint(err error) (time.Duration, bool) {
	var d Delayer
	if errors.As(err, &d) {
		return d.RetryAfter()
	}
	return 0, false
}
