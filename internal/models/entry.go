package models

import (
	"time"
)

// FreshnessResolution is the clock granularity used when comparing an entry's
// age with a ttl. A read in the same tick as the write is always fresh.
const FreshnessResolution = time.Millisecond

// Entry represents a cache entry.
type Entry struct {
	Data      []byte    `json:"data"`
	WrittenAt time.Time `json:"writtenAt"`
}

// NewEntry creates a new Entry stamped with the current time.
// The data slice is copied so the caller may reuse its buffer.
func NewEntry(data []byte) Entry {
	return Entry{
		Data:      clone(data),
		WrittenAt: time.Now(),
	}
}

// Age returns how long ago the entry was written.
func (e Entry) Age() time.Duration {
	return time.Since(e.WrittenAt)
}

// IsFresh reports whether the entry is still usable under ttl.
// A negative ttl is never fresh; a zero ttl accepts entries written within
// the current FreshnessResolution tick.
func (e Entry) IsFresh(ttl time.Duration) bool {
	if ttl < 0 {
		return false
	}
	return e.Age().Truncate(FreshnessResolution) <= ttl
}

// Bytes returns a copy of the entry data.
func (e Entry) Bytes() []byte {
	return clone(e.Data)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
