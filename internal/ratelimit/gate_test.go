package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_SpacesCallersInArrivalOrder(t *testing.T) {
	const (
		callers  = 5
		interval = 40 * time.Millisecond
	)
	g := NewGate("test", interval, nil)

	var (
		mu    sync.Mutex
		order []int
		times []time.Time
		wg    sync.WaitGroup
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			at, err := g.acquire(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			order = append(order, i)
			times = append(times, at)
			mu.Unlock()
		}(i)
		// Stagger arrivals so the queue order is known.
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), interval)
	}
	assert.EqualValues(t, callers, g.Stats().Admitted)
	assert.GreaterOrEqual(t, g.Stats().Waited, int64(callers-1))
}

func TestGate_CancelledWaiterDoesNotAdvance(t *testing.T) {
	const interval = 150 * time.Millisecond
	g := NewGate("test", interval, nil)

	first, err := g.acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = g.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, first, g.Last())

	next, err := g.acquire(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, next.Sub(first), interval)
}

func TestGate_CancelledWhileQueued(t *testing.T) {
	g := NewGate("test", 100*time.Millisecond, nil)
	require.NoError(t, g.Acquire(context.Background()))

	// Holds the semaphore while it sleeps out the interval.
	done := make(chan error, 1)
	go func() { done <- g.Acquire(context.Background()) }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	queued := make(chan error, 1)
	go func() { queued <- g.Acquire(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-queued, context.Canceled)
	assert.NoError(t, <-done)
	assert.EqualValues(t, 2, g.Stats().Admitted)
}

func TestGate_ZeroIntervalDoesNotLimit(t *testing.T) {
	g := NewGate("test", 0, nil)

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, g.Acquire(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Zero(t, g.Stats().Waited)
}

func TestGate_AlreadyCancelled(t *testing.T) {
	g := NewGate("test", time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, g.Acquire(ctx), context.Canceled)
	assert.True(t, g.Last().IsZero())
}
