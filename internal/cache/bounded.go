package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	"goflare.io/gamecompat/internal/models"
)

// Bounded is an in-process store capped at a fixed number of entries. When
// full, ristretto's admission policy decides which keys stay; a rejected write
// is counted as dropped and behaves like any other failed write.
type Bounded struct {
	mu      sync.Mutex
	cache   *ristretto.Cache
	metrics *models.Metrics
	logger  *zap.Logger
}

// NewBounded creates a Bounded store holding at most maxEntries entries.
func NewBounded(maxEntries int64, logger *zap.Logger) (*Bounded, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("max entries must be positive, got %d", maxEntries)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// NumCounters should be ~10x the number of entries.
	numCounters := maxEntries * 10
	if numCounters < 1000 {
		numCounters = 1000
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        numCounters,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Ristretto cache: %w", err)
	}

	return &Bounded{
		cache:   c,
		metrics: models.NewMetrics(),
		logger:  logger,
	}, nil
}

func (b *Bounded) TryGet(key string, ttl time.Duration) ([]byte, bool) {
	if key == "" {
		return nil, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	value, found := b.cache.Get(key)
	if !found {
		b.metrics.Misses.Inc()
		return nil, false
	}

	entry, ok := value.(models.Entry)
	if !ok {
		b.logger.Error("Invalid cache entry type", zap.String("key", key))
		b.cache.Del(key)
		b.metrics.Misses.Inc()
		return nil, false
	}

	if !entry.IsFresh(ttl) {
		b.cache.Del(key)
		b.metrics.Evictions.Inc()
		b.metrics.Misses.Inc()
		return nil, false
	}

	b.metrics.Hits.Inc()
	return entry.Bytes(), true
}

func (b *Bounded) Set(key string, data []byte) {
	if key == "" || len(data) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.cache.Set(key, models.NewEntry(data), 1) {
		b.logger.Debug("Ristretto Set dropped", zap.String("key", key))
		b.metrics.Dropped.Inc()
		return
	}
	// Make the write visible to the next TryGet.
	b.cache.Wait()
	b.metrics.Writes.Inc()
}

func (b *Bounded) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache.Clear()
}

func (b *Bounded) Stats() models.Snapshot {
	return b.metrics.Snapshot()
}

// Close releases the ristretto goroutines.
func (b *Bounded) Close() {
	b.cache.Close()
}
