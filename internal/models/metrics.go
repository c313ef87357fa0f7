package models

import "go.uber.org/atomic"

// Metrics stores cache statistics
type Metrics struct {
	Hits      *atomic.Int64
	Misses    *atomic.Int64
	Evictions *atomic.Int64
	Writes    *atomic.Int64
	Dropped   *atomic.Int64
}

// Snapshot is a point-in-time copy of Metrics.
type Snapshot struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Writes    int64
	Dropped   int64
}

func NewMetrics() *Metrics {
	return &Metrics{
		Hits:      atomic.NewInt64(0),
		Misses:    atomic.NewInt64(0),
		Evictions: atomic.NewInt64(0),
		Writes:    atomic.NewInt64(0),
		Dropped:   atomic.NewInt64(0),
	}
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Hits:      m.Hits.Load(),
		Misses:    m.Misses.Load(),
		Evictions: m.Evictions.Load(),
		Writes:    m.Writes.Load(),
		Dropped:   m.Dropped.Load(),
	}
}
