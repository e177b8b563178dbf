package arenaskip

import (
	"cmp"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Map is a concurrent ordered map backed by a lock-free skip list whose
// nodes live in an index-addressed arena. Removed nodes are recycled through
// a three-tier free-slot pool once no level links to them.
//
// All methods are safe for concurrent use. Map methods borrow a Worker from
// an internal pool; goroutines doing many operations can hold their own
// Worker from NewWorker to keep a warm finger and slot cache.
type Map[K, V any] struct {
	less     func(a, b K) bool
	pool     *nodePool[K, V]
	level    atomic.Int32
	maxLevel int
	metrics  *metrics
	logger   *slog.Logger

	cacheSize int
	seed      uint64
	seeded    bool
	ordinals  atomic.Uint64
	workers   sync.Pool
}

// Entry is a key/value pair.
type Entry[K, V any] struct {
	Key   K
	Value V
}

// New returns an empty Map ordered by less, which must be a strict weak
// ordering.
func New[K, V any](less func(a, b K) bool, opts ...Option) (*Map[K, V], error) {
	if less == nil {
		return nil, ErrNilLess
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	pool, err := newNodePool[K, V](cfg)
	if err != nil {
		return nil, err
	}
	m := &Map[K, V]{
		less:      less,
		pool:      pool,
		maxLevel:  cfg.maxLevel,
		metrics:   newMetrics(),
		logger:    cfg.logger,
		cacheSize: cfg.cacheSize,
		seed:      cfg.seed,
		seeded:    cfg.seeded,
	}
	m.workers.New = func() any { return m.newWorker(false) }
	return m, nil
}

// NewOrdered returns an empty Map over a naturally ordered key type.
func NewOrdered[K cmp.Ordered, V any](opts ...Option) (*Map[K, V], error) {
	return New[K, V](cmp.Less[K], opts...)
}

// Insert adds key with value if key is absent and reports whether it did.
func (m *Map[K, V]) Insert(key K, value V) (bool, error) {
	w := m.acquire()
	defer m.release(w)
	return w.Insert(key, value)
}

// InsertOrAssign stores value under key, replacing the value of an existing
// entry. The returned iterator is positioned at the entry; the bool reports
// whether the entry was created.
func (m *Map[K, V]) InsertOrAssign(key K, value V) (*Iterator[K, V], bool, error) {
	w := m.acquire()
	defer m.release(w)
	return w.InsertOrAssign(key, value)
}

// Get returns the value stored under key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	w := m.acquire()
	defer m.release(w)
	return w.Get(key)
}

// Contains reports whether key is present.
func (m *Map[K, V]) Contains(key K) bool {
	w := m.acquire()
	defer m.release(w)
	return w.Contains(key)
}

// Find returns an iterator positioned at key. The iterator is invalid when
// key is absent.
func (m *Map[K, V]) Find(key K) *Iterator[K, V] {
	w := m.acquire()
	defer m.release(w)
	return w.Find(key)
}

// Remove deletes key and reports whether it was present.
func (m *Map[K, V]) Remove(key K) bool {
	w := m.acquire()
	defer m.release(w)
	return w.Remove(key)
}

// Delete deletes key and returns the value it held.
func (m *Map[K, V]) Delete(key K) (V, bool) {
	w := m.acquire()
	defer m.release(w)
	return w.Delete(key)
}

// Len returns the number of entries. Under concurrent writes it is a
// momentary approximation.
func (m *Map[K, V]) Len() int {
	return int(m.metrics.length())
}

// LenInt64 returns the number of entries as an int64.
func (m *Map[K, V]) LenInt64() int64 {
	return m.metrics.length()
}

// Empty reports whether no live entry is reachable at level 0.
func (m *Map[K, V]) Empty() bool {
	_, ok, stale := m.walk(m.pool.header().loadNext(0))
	for stale {
		_, ok, stale = m.walk(m.pool.header().loadNext(0))
	}
	return !ok
}

// Clear removes every entry. Entries inserted concurrently may survive.
func (m *Map[K, V]) Clear() {
	w := m.acquire()
	defer m.release(w)
	for _, k := range m.Keys() {
		w.Remove(k)
	}
}

// Level returns the current highest level in use.
func (m *Map[K, V]) Level() int {
	return int(m.level.Load())
}

// MaxLevel returns the configured level cap.
func (m *Map[K, V]) MaxLevel() int {
	return m.maxLevel
}

// Stats returns a snapshot of the map's counters and arena usage.
func (m *Map[K, V]) Stats() Stats {
	s := m.metrics.snapshot()
	s.Level = m.Level()
	s.MaxLevel = m.maxLevel
	s.Pool = m.pool.stats()
	return s
}

// InsertCASStats returns the number of failed link CAS attempts made by
// inserts at any level and the number of inserts that got published.
func (m *Map[K, V]) InsertCASStats() (retries, successes int64) {
	s := m.metrics.snapshot()
	return s.InsertCASRetries, s.InsertCASSuccesses
}
