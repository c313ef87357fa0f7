// Package retrier runs an operation repeatedly with backoff until it succeeds,
// fails permanently or runs out of attempts.
package retrier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

const (
	minMaxAttempts = 1
	minBaseDelay   = time.Millisecond
	minFactor      = 1.0
	maxJitter      = 1.0
)

// ExponentialBackoff represents a backoff strategy where intervals exponentially increase.
// LinearBackoff represents a backoff strategy where intervals increase linearly.
// FibonacciBackoff represents a backoff strategy where intervals increase based on the Fibonacci sequence.
const (
	ExponentialBackoff BackoffStrategy = iota
	LinearBackoff
	FibonacciBackoff
)

var (
	// ErrInvalidMaxAttempts is returned when the max attempts parameter is invalid.
	ErrInvalidMaxAttempts = errors.New("max attempts must be at least 1")
	// ErrInvalidBaseDelay is returned when the base delay parameter is invalid.
	ErrInvalidBaseDelay = errors.New("base delay must be at least 1ms")
	// ErrInvalidMaxDelay is returned when the max delay is below the base delay.
	ErrInvalidMaxDelay = errors.New("max delay must not be below base delay")
	// ErrInvalidFactor is returned when the factor parameter is invalid.
	ErrInvalidFactor = errors.New("factor must be at least 1.0")
	// ErrInvalidJitter is returned when the jitter parameter is invalid.
	ErrInvalidJitter = errors.New("jitter must be between 0 and 1")
	// ErrExhausted wraps the last error once every attempt has failed.
	ErrExhausted = errors.New("max retry attempts reached")
)

// BackoffStrategy defines the strategy used for calculating backoff intervals in retry mechanisms.
type BackoffStrategy int

func (s BackoffStrategy) String() string {
	switch s {
	case LinearBackoff:
		return "linear"
	case FibonacciBackoff:
		return "fibonacci"
	default:
		return "exponential"
	}
}

// Config holds the retry policy.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
	Jitter      float64
	Strategy    BackoffStrategy

	// Classifier reports whether err is worth another attempt. IsTemporary
	// is used when nil.
	Classifier func(error) bool
	// OnRetry is called before sleeping ahead of the next attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Retrier provides functionality to execute a function with retry logic based on different backoff strategies.
type Retrier struct {
	cfg Config
}

// New validates cfg and returns a Retrier for it.
func New(cfg Config) (*Retrier, error) {
	if cfg.MaxAttempts < minMaxAttempts {
		return nil, ErrInvalidMaxAttempts
	}
	if cfg.BaseDelay < minBaseDelay {
		return nil, ErrInvalidBaseDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		return nil, ErrInvalidMaxDelay
	}
	if cfg.Factor < minFactor {
		return nil, ErrInvalidFactor
	}
	if cfg.Jitter < 0 || cfg.Jitter > maxJitter {
		return nil, ErrInvalidJitter
	}
	if cfg.Classifier == nil {
		cfg.Classifier = IsTemporary
	}
	return &Retrier{cfg: cfg}, nil
}

// MaxAttempts returns the total number of attempts Run will make.
func (r *Retrier) MaxAttempts() int {
	return r.cfg.MaxAttempts
}

// Run calls fn until it returns nil, a non-retryable error, or the attempts
// are used up. Attempts are numbered from 1. Context cancellation during a
// backoff sleep returns ctx.Err().
func (r *Retrier) Run(ctx context.Context, fn func(attempt int) error) error {
	var err error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if !r.cfg.Classifier(err) {
			// Non-temporary error, do not retry
			return err
		}

		if attempt == r.cfg.MaxAttempts {
			break
		}

		delay := r.Delay(attempt - 1)
		if hint, ok := RetryAfterHint(err); ok {
			delay = min(hint, r.cfg.MaxDelay)
		}
		if r.cfg.OnRetry != nil {
			r.cfg.OnRetry(attempt, delay, err)
		}

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w: %w", ErrExhausted, err)
}

func sleep(ctx context.Context, d time.Duration) error {
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

// Delay computes the jittered wait after the given zero-based retry.
func (r *Retrier) Delay(retry int) time.Duration {
	var delay float64

	switch r.cfg.Strategy {
	case LinearBackoff:
		delay = float64(r.cfg.BaseDelay) * float64(retry+1)
	case FibonacciBackoff:
		delay = float64(r.cfg.BaseDelay) * float64(fibonacci(retry+1))
	default:
		delay = float64(r.cfg.BaseDelay) * math.Pow(r.cfg.Factor, float64(retry))
	}

	if delay > float64(r.cfg.MaxDelay) {
		delay = float64(r.cfg.MaxDelay)
	}

	delay += rand.Float64() * r.cfg.Jitter * delay
	if delay > float64(time.Hour) {
		delay = float64(time.Hour)
	}
	return time.Duration(delay)
}

// fibonacci returns the n-th Fibonacci number with fibonacci(1) == 1,
// saturating well before overflow.
func fibonacci(n int) int64 {
	var a, b int64 = 0, 1
	for i := 1; i < n && b < math.MaxInt32; i++ {
		a, b = b, a+b
	}
	return b
}
