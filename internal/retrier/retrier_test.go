package retrier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tempErr struct{ temp bool }

func (e tempErr) Error() string   { return "temp" }
func (e tempErr) Temporary() bool { return e.temp }

type hintErr struct{ after time.Duration }

func (e hintErr) Error() string                     { return "slow down" }
func (e hintErr) Temporary() bool                   { return true }
func (e hintErr) RetryAfter() (time.Duration, bool) { return e.after, true }

func newRetrier(t *testing.T, cfg Config) *Retrier {
	t.Helper()
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = time.Millisecond
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 10 * time.Millisecond
	}
	if cfg.Factor == 0 {
		cfg.Factor = 2
	}
	r, err := New(cfg)
	require.NoError(t, err)
	return r
}

func TestNew_Validation(t *testing.T) {
	valid := Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Second, Factor: 2, Jitter: 0.5}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"attempts", func(c *Config) { c.MaxAttempts = 0 }, ErrInvalidMaxAttempts},
		{"base delay", func(c *Config) { c.BaseDelay = 0 }, ErrInvalidBaseDelay},
		{"max delay", func(c *Config) { c.MaxDelay = time.Microsecond }, ErrInvalidMaxDelay},
		{"factor", func(c *Config) { c.Factor = 0.5 }, ErrInvalidFactor},
		{"jitter", func(c *Config) { c.Jitter = 1.5 }, ErrInvalidJitter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := New(valid)
	assert.NoError(t, err)
}

func TestRun_SucceedsAfterTemporaryFailures(t *testing.T) {
	r := newRetrier(t, Config{})

	calls := 0
	err := r.Run(context.Background(), func(attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if calls < 3 {
			return tempErr{temp: true}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRun_PermanentErrorStops(t *testing.T) {
	r := newRetrier(t, Config{})
	boom := errors.New("boom")

	calls := 0
	err := r.Run(context.Background(), func(int) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRun_Exhausted(t *testing.T) {
	r := newRetrier(t, Config{MaxAttempts: 4})

	calls := 0
	err := r.Run(context.Background(), func(int) error {
		calls++
		return tempErr{temp: true}
	})
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorAs(t, err, new(tempErr))
	assert.Equal(t, 4, calls)
}

func TestRun_CustomClassifier(t *testing.T) {
	r := newRetrier(t, Config{Classifier: func(error) bool { return true }})

	calls := 0
	_ = r.Run(context.Background(), func(int) error {
		calls++
		return errors.New("plain")
	})
	assert.Equal(t, 3, calls)
}

func TestRun_CancelDuringBackoff(t *testing.T) {
	r := newRetrier(t, Config{BaseDelay: time.Second, MaxDelay: time.Second})
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	start := time.Now()
	err := r.Run(ctx, func(int) error {
		calls++
		time.AfterFunc(10*time.Millisecond, cancel)
		return tempErr{temp: true}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRun_RetryAfterHintCapped(t *testing.T) {
	var delays []time.Duration
	r := newRetrier(t, Config{
		MaxAttempts: 2,
		MaxDelay:    20 * time.Millisecond,
		OnRetry: func(_ int, d time.Duration, _ error) {
			delays = append(delays, d)
		},
	})

	_ = r.Run(context.Background(), func(int) error {
		return hintErr{after: time.Hour}
	})
	assert.Equal(t, []time.Duration{20 * time.Millisecond}, delays)
}

func TestDelay_Strategies(t *testing.T) {
	base := 100 * time.Millisecond
	tests := []struct {
		strategy BackoffStrategy
		want     []time.Duration
	}{
		{ExponentialBackoff, []time.Duration{100, 200, 400, 800, 1000}},
		{LinearBackoff, []time.Duration{100, 200, 300, 400, 500}},
		{FibonacciBackoff, []time.Duration{100, 100, 200, 300, 500}},
	}
	for _, tt := range tests {
		t.Run(tt.strategy.String(), func(t *testing.T) {
			r := newRetrier(t, Config{BaseDelay: base, MaxDelay: time.Second, Strategy: tt.strategy})
			for i, want := range tt.want {
				assert.Equal(t, want*time.Millisecond, r.Delay(i), "retry %d", i)
			}
		})
	}
}

func TestDelay_JitterBounds(t *testing.T) {
	r := newRetrier(t, Config{BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second, Jitter: 0.5})
	for i := 0; i < 100; i++ {
		d := r.Delay(0)
		assert.GreaterOrEqual(t, d, 200*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}
