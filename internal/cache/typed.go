package cache

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"goflare.io/gamecompat/pkg/serialization"
)

// Typed is a view of a Store holding values of one type under one key
// namespace. Values are encoded with codec before they reach the store.
type Typed[V any] struct {
	store     Store
	namespace string
	codec     serialization.Codec
	absent    func(V) bool
	logger    *zap.Logger
}

// TypedOption configures a Typed view.
type TypedOption[V any] func(*Typed[V])

// WithAbsent sets the predicate for values that must not be cached.
func WithAbsent[V any](absent func(V) bool) TypedOption[V] {
	return func(t *Typed[V]) {
		t.absent = absent
	}
}

// WithTypedCodec overrides the value codec. JSON is the default.
func WithTypedCodec[V any](c serialization.Codec) TypedOption[V] {
	return func(t *Typed[V]) {
		t.codec = c
	}
}

// WithTypedLogger sets the logger.
func WithTypedLogger[V any](logger *zap.Logger) TypedOption[V] {
	return func(t *Typed[V]) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTyped creates a view over store whose keys are "<namespace>_<id>".
func NewTyped[V any](store Store, namespace string, opts ...TypedOption[V]) *Typed[V] {
	t := &Typed[V]{
		store:     store,
		namespace: namespace,
		codec:     serialization.JSON,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Key returns the store key for id.
func (t *Typed[V]) Key(id int64) string {
	return fmt.Sprintf("%s_%d", t.namespace, id)
}

// TryGet returns the cached value for id if it is at most ttl old.
func (t *Typed[V]) TryGet(id int64, ttl time.Duration) (V, bool) {
	var zero V

	key := t.Key(id)
	raw, ok := t.store.TryGet(key, ttl)
	if !ok {
		return zero, false
	}

	var v V
	if err := t.codec.Unmarshal(raw, &v); err != nil {
		t.logger.Debug("Discarding undecodable cache value", zap.String("key", key), zap.Error(err))
		// Overwriting with nothing is a no-op, so expire it instead.
		t.store.TryGet(key, -1)
		return zero, false
	}
	return v, true
}

// Set stores v for id unless v is absent.
func (t *Typed[V]) Set(id int64, v V) {
	if t.absent != nil && t.absent(v) {
		return
	}

	key := t.Key(id)
	raw, err := t.codec.Marshal(v)
	if err != nil {
		t.logger.Warn("Failed to encode cache value", zap.String("key", key), zap.Error(err))
		return
	}
	t.store.Set(key, raw)
}

// Store returns the underlying byte store.
func (t *Typed[V]) Store() Store {
	return t.store
}
