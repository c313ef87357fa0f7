// Package resilience wraps outbound HTTP calls to one upstream with a
// per-attempt timeout, bounded retries and a circuit breaker, in that order
// from the inside out.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/gamecompat/internal/retrier"
)

const drainLimit = 64 << 10

// Operation issues one HTTP request bound to ctx.
type Operation func(ctx context.Context) (*http.Response, error)

// Settings configures a Pipeline. Zero values other than Jitter take the
// defaults from DefaultSettings.
type Settings struct {
	Name string

	Timeout time.Duration

	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
	Jitter      float64

	FailureRatio      float64
	MinimumThroughput int64
	SamplingDuration  time.Duration
	BreakDuration     time.Duration

	Logger        *zap.Logger
	OnStateChange func(name string, from, to gobreaker.State)
	OnRetry       func(name string, attempt int, delay time.Duration, err error)
}

// DefaultSettings returns the policy used for both upstreams.
func DefaultSettings(name string) Settings {
	return Settings{
		Name:              name,
		Timeout:           10 * time.Second,
		MaxAttempts:       3,
		BaseDelay:         200 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		Factor:            2,
		Jitter:            0.5,
		FailureRatio:      0.5,
		MinimumThroughput: 5,
		SamplingDuration:  time.Minute,
		BreakDuration:     2 * time.Minute,
	}
}

// Pipeline is safe for concurrent use. Breaker state is private to one
// Pipeline and lasts for the life of the process.
type Pipeline struct {
	name    string
	timeout time.Duration
	retrier *retrier.Retrier
	breaker *gobreaker.TwoStepCircuitBreaker
	window  *window
	logger  *zap.Logger
}

// New builds a Pipeline from s.
func New(s Settings) (*Pipeline, error) {
	d := DefaultSettings(s.Name)
	if s.Timeout <= 0 {
		s.Timeout = d.Timeout
	}
	if s.MaxAttempts == 0 {
		s.MaxAttempts = d.MaxAttempts
	}
	if s.BaseDelay == 0 {
		s.BaseDelay = d.BaseDelay
	}
	if s.MaxDelay == 0 {
		s.MaxDelay = max(d.MaxDelay, s.BaseDelay)
	}
	if s.Factor == 0 {
		s.Factor = d.Factor
	}
	if s.FailureRatio == 0 {
		s.FailureRatio = d.FailureRatio
	}
	if s.MinimumThroughput == 0 {
		s.MinimumThroughput = d.MinimumThroughput
	}
	if s.SamplingDuration <= 0 {
		s.SamplingDuration = d.SamplingDuration
	}
	if s.BreakDuration <= 0 {
		s.BreakDuration = d.BreakDuration
	}
	if s.FailureRatio < 0 || s.FailureRatio > 1 {
		return nil, fmt.Errorf("failure ratio must be in (0,1], got %v", s.FailureRatio)
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}

	p := &Pipeline{
		name:    s.Name,
		timeout: s.Timeout,
		window:  newWindow(s.SamplingDuration),
		logger:  s.Logger.With(zap.String("upstream", s.Name)),
	}

	r, err := retrier.New(retrier.Config{
		MaxAttempts: s.MaxAttempts,
		BaseDelay:   s.BaseDelay,
		MaxDelay:    s.MaxDelay,
		Factor:      s.Factor,
		Jitter:      s.Jitter,
		Strategy:    retrier.ExponentialBackoff,
		Classifier:  isTransient,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			p.logger.Debug("Retrying request",
				zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
			if s.OnRetry != nil {
				s.OnRetry(s.Name, attempt, delay, err)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create retrier: %w", err)
	}
	p.retrier = r

	ratio, minSamples := s.FailureRatio, s.MinimumThroughput
	p.breaker = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.BreakDuration,
		ReadyToTrip: func(gobreaker.Counts) bool {
			samples, failures := p.window.counts()
			return samples >= minSamples && float64(failures)/float64(samples) > ratio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			// A fresh state starts with a fresh sample.
			p.window.reset()
			p.logger.Info("Circuit breaker state changed",
				zap.String("from", from.String()), zap.String("to", to.String()))
			if s.OnStateChange != nil {
				s.OnStateChange(name, from, to)
			}
		},
	})

	return p, nil
}

// Name returns the upstream name.
func (p *Pipeline) Name() string {
	return p.name
}

// State returns the breaker state.
func (p *Pipeline) State() gobreaker.State {
	return p.breaker.State()
}

// Execute runs op through the breaker, the retry loop and the per-attempt
// timeout. On success the response body belongs to the caller.
//
// A 4xx other than 429 is returned as a normal response on the first
// attempt. If retries run out on a 429 or 5xx, the last response is returned
// rather than an error. Transport failures and timeouts that outlast the
// retries come back as errors, ErrTimeout among them. Cancellation of ctx
// returns ctx.Err() and is not counted against the breaker.
//
// A cancelled half-open trial is the exception: gobreaker holds the single
// trial slot until an outcome is reported, so it is reported as a success and
// the breaker closes with an empty window. The next MinimumThroughput calls
// decide whether it opens again.
func (p *Pipeline) Execute(ctx context.Context, op Operation) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done, err := p.breaker.Allow()
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w", p.name, ErrCircuitOpen)
		}
		return nil, err
	}

	resp, err := p.retry(ctx, op)

	switch {
	case err != nil && ctx.Err() != nil:
		// A half-open trial must always report back or the breaker never
		// admits another call. This closes the breaker. Outcomes of stale
		// generations are ignored.
		if p.breaker.State() == gobreaker.StateHalfOpen {
			done(true)
		}
		return nil, ctx.Err()
	case err != nil:
		p.window.record(false)
		done(false)
		return nil, err
	case resp.StatusCode >= 500:
		p.window.record(false)
		done(false)
		return resp, nil
	default:
		p.window.record(true)
		done(true)
		return resp, nil
	}
}

func (p *Pipeline) retry(ctx context.Context, op Operation) (*http.Response, error) {
	var last *http.Response
	err := p.retrier.Run(ctx, func(int) error {
		if last != nil {
			discard(last)
			last = nil
		}
		resp, err := p.attempt(ctx, op)
		if err != nil {
			return err
		}
		last = resp
		if retryableStatus(resp.StatusCode) {
			return newStatusError(resp)
		}
		return nil
	})
	if err == nil {
		return last, nil
	}

	var statusErr *StatusError
	if ctx.Err() == nil && errors.As(err, &statusErr) {
		return statusErr.Response, nil
	}
	if last != nil {
		discard(last)
	}
	return nil, err
}

// attempt runs op once under the request timeout. The timeout keeps running
// until the caller closes the response body.
func (p *Pipeline) attempt(ctx context.Context, op Operation) (*http.Response, error) {
	actx, cancel := context.WithTimeout(ctx, p.timeout)
	resp, err := op(actx)
	if err != nil {
		cancel()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(actx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s after %s: %w", p.name, p.timeout, ErrTimeout)
		}
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// isTransient decides which failed attempts are retried: anything except a
// cancellation of the caller's context.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return true
	}
	return !errors.Is(err, context.DeadlineExceeded)
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	_ = resp.Body.Close()
}
