package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"goflare.io/gamecompat/internal/models"
)

// Memory keeps entries in a map for the lifetime of the process.
type Memory struct {
	mu      sync.Mutex
	entries map[string]models.Entry
	metrics *models.Metrics
	logger  *zap.Logger
}

// NewMemory creates an empty in-process store.
func NewMemory(logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{
		entries: make(map[string]models.Entry),
		metrics: models.NewMetrics(),
		logger:  logger,
	}
}

func (m *Memory) TryGet(key string, ttl time.Duration) ([]byte, bool) {
	if key == "" {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		m.metrics.Misses.Inc()
		return nil, false
	}
	if !entry.IsFresh(ttl) {
		delete(m.entries, key)
		m.metrics.Evictions.Inc()
		m.metrics.Misses.Inc()
		m.logger.Debug("Evicted stale entry", zap.String("key", key), zap.Duration("age", entry.Age()))
		return nil, false
	}

	m.metrics.Hits.Inc()
	return entry.Bytes(), true
}

func (m *Memory) Set(key string, data []byte) {
	if key == "" || len(data) == 0 {
		return
	}

	entry := models.NewEntry(data)

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()

	m.metrics.Writes.Inc()
}

func (m *Memory) Clear() {
	m.mu.Lock()
	m.entries = make(map[string]models.Entry)
	m.mu.Unlock()
}

func (m *Memory) Stats() models.Snapshot {
	return m.metrics.Snapshot()
}

// Len returns the number of entries currently held, stale or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
