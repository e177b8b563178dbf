package arenaskip

import "runtime"

// Worker is an owner-scoped handle on a Map. It carries the search finger,
// the level generator and the free-slot cache that the Map methods otherwise
// borrow from an internal pool. A Worker must not be used by more than one
// goroutine at a time; any number of Workers may share a Map.
type Worker[K, V any] struct {
	m       *Map[K, V]
	ordinal uint64
	cache   *localCache
	rng     rng
	stats   *metricShard

	// finger is the level-0 predecessor of the last search as an
	// (index, generation) pair, or zero for the header. Only handles from
	// NewWorker keep one; pooled handles serve unrelated callers.
	fingered bool
	finger   ref
	preds  []uint32
	succs  []ref
	filled int
}

// NewWorker returns a new handle with its own finger and slot cache. Slots
// cached by a Worker are handed back to the shared pool once it is garbage
// collected.
func (m *Map[K, V]) NewWorker() *Worker[K, V] {
	return m.newWorker(true)
}

func (m *Map[K, V]) newWorker(fingered bool) *Worker[K, V] {
	ordinal := m.ordinals.Add(1) - 1
	seed := m.seed
	if !m.seeded {
		seed = newRandomSeed()
	}
	w := &Worker[K, V]{
		m:        m,
		ordinal:  ordinal,
		cache:    newLocalCache(m.cacheSize),
		rng:      newRNG(mixSeed(seed, ordinal)),
		stats:    m.metrics.shard(ordinal),
		fingered: fingered,
		preds:    make([]uint32, m.maxLevel+1),
		succs:    make([]ref, m.maxLevel+1),
	}
	runtime.AddCleanup(w, m.pool.drain, w.cache)
	return w
}

func (m *Map[K, V]) acquire() *Worker[K, V] {
	return m.workers.Get().(*Worker[K, V])
}

func (m *Map[K, V]) release(w *Worker[K, V]) {
	m.workers.Put(w)
}

// Insert adds key with value if key is absent. It reports whether the entry
// was created; an existing entry is left untouched.
func (w *Worker[K, V]) Insert(key K, value V) (bool, error) {
	_, created, err := w.insert(key, value, false)
	return created, err
}

// InsertOrAssign stores value under key. It returns an iterator positioned at
// the entry and reports whether the entry was created. An existing entry
// keeps its key and only has its value replaced.
func (w *Worker[K, V]) InsertOrAssign(key K, value V) (*Iterator[K, V], bool, error) {
	c, created, err := w.insert(key, value, true)
	if err != nil {
		return &Iterator[K, V]{m: w.m}, false, err
	}
	return w.m.iteratorAt(c), created, nil
}

// Get returns the value stored under key.
func (w *Worker[K, V]) Get(key K) (V, bool) {
	var zero V
	_, gen, n, equal := w.find(key, w.fingered)
	w.setFinger()
	if !equal {
		return zero, false
	}
	vp := n.val.Load()
	if vp == nil || n.generation() != gen {
		return zero, false
	}
	return *vp, true
}

// Contains reports whether key is present.
func (w *Worker[K, V]) Contains(key K) bool {
	_, ok := w.Get(key)
	return ok
}

// Find returns an iterator positioned at key, or an invalid iterator when
// key is absent.
func (w *Worker[K, V]) Find(key K) *Iterator[K, V] {
	idx, gen, n, equal := w.find(key, w.fingered)
	w.setFinger()
	if equal {
		kp := n.key.Load()
		vp := n.val.Load()
		if vp != nil && n.generation() == gen {
			return w.m.iteratorAt(cursor[K, V]{idx: idx, gen: gen, key: *kp, value: *vp})
		}
	}
	return &Iterator[K, V]{m: w.m}
}

// Remove deletes key and reports whether it was present.
func (w *Worker[K, V]) Remove(key K) bool {
	_, ok := w.remove(key)
	return ok
}

// Delete deletes key and returns the value it held.
func (w *Worker[K, V]) Delete(key K) (V, bool) {
	return w.remove(key)
}
