package resilience

import (
	"sync"
	"time"
)

const windowBuckets = 10

type bucket struct {
	start     int64
	successes int64
	failures  int64
}

// window counts outcomes over the trailing sampling duration using a ring of
// fixed width buckets. Outcomes older than the duration drop out one bucket
// at a time.
type window struct {
	mu      sync.Mutex
	width   int64
	buckets [windowBuckets]bucket
	now     func() time.Time
}

func newWindow(sampling time.Duration) *window {
	width := int64(sampling) / windowBuckets
	if width <= 0 {
		width = 1
	}
	return &window{width: width, now: time.Now}
}

func (w *window) current() *bucket {
	slot := w.now().UnixNano() / w.width
	b := &w.buckets[slot%windowBuckets]
	if b.start != slot {
		*b = bucket{start: slot}
	}
	return b
}

func (w *window) record(success bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	b := w.current()
	if success {
		b.successes++
	} else {
		b.failures++
	}
}

// counts returns the number of samples and failures still inside the window.
func (w *window) counts() (samples, failures int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	slot := w.now().UnixNano() / w.width
	for _, b := range w.buckets {
		if b.start > slot-windowBuckets && b.start <= slot {
			samples += b.successes + b.failures
			failures += b.failures
		}
	}
	return samples, failures
}

func (w *window) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buckets = [windowBuckets]bucket{}
}
