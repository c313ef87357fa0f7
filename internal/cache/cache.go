// Package cache implements the TTL stores used to remember upstream answers.
//
// Every backend satisfies Store. Freshness is decided at read time from the
// ttl the caller passes, so one entry can serve callers with different
// policies. Stores never report I/O or decoding problems to the caller: a
// failed read is a miss and a failed write is silently dropped.
package cache

import (
	"time"

	"goflare.io/gamecompat/internal/models"
)

// Store is a byte-oriented TTL cache.
type Store interface {
	// TryGet returns a copy of the data stored under key if it is at most ttl
	// old. A stale entry is removed as a side effect.
	TryGet(key string, ttl time.Duration) ([]byte, bool)
	// Set replaces any entry for key with data stamped with the current time.
	// Empty data is ignored.
	Set(key string, data []byte)
	// Clear removes every entry.
	Clear()
	// Stats returns hit, miss and write counters.
	Stats() models.Snapshot
}

// Backend names accepted by the configuration layer.
const (
	BackendMemory  = "memory"
	BackendFile    = "file"
	BackendBounded = "bounded"
)
