// Package ratelimit spaces outbound requests to a single upstream.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Gate lets at most one caller through per interval. Callers are admitted in
// the order they arrive.
type Gate struct {
	name     string
	interval time.Duration
	sem      *semaphore.Weighted

	mu   sync.Mutex
	last time.Time

	admitted *atomic.Int64
	waited   *atomic.Int64
	logger   *zap.Logger
}

// Stats counts admissions and how many of them had to wait.
type Stats struct {
	Admitted int64
	Waited   int64
}

// NewGate creates a gate for the named upstream. An interval <= 0 disables
// limiting.
func NewGate(name string, interval time.Duration, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		name:     name,
		interval: interval,
		sem:      semaphore.NewWeighted(1),
		admitted: atomic.NewInt64(0),
		waited:   atomic.NewInt64(0),
		logger:   logger,
	}
}

// Acquire blocks until the caller may issue its request. It returns ctx.Err()
// if ctx is done first, in which case the gate is left as it was.
func (g *Gate) Acquire(ctx context.Context) error {
	_, err := g.acquire(ctx)
	return err
}

func (g *Gate) acquire(ctx context.Context) (time.Time, error) {
	if g.interval <= 0 {
		if err := ctx.Err(); err != nil {
			return time.Time{}, err
		}
		g.admitted.Inc()
		return time.Now(), nil
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return time.Time{}, err
	}
	defer g.sem.Release(1)

	g.mu.Lock()
	wait := time.Until(g.last.Add(g.interval))
	g.mu.Unlock()

	if wait > 0 {
		g.waited.Inc()
		g.logger.Debug("Rate gate waiting", zap.String("upstream", g.name), zap.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return time.Time{}, ctx.Err()
		case <-timer.C:
		}
	}

	now := time.Now()
	g.mu.Lock()
	g.last = now
	g.mu.Unlock()
	g.admitted.Inc()
	return now, nil
}

// Last returns the time the most recent caller was admitted.
func (g *Gate) Last() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

// Interval returns the configured spacing.
func (g *Gate) Interval() time.Duration {
	return g.interval
}

func (g *Gate) Stats() Stats {
	return Stats{
		Admitted: g.admitted.Load(),
		Waited:   g.waited.Load(),
	}
}
