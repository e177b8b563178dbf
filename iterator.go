package arenaskip

// Iterator provides a forward-only view over the map. It holds a
// generation-tagged slot reference plus a snapshot of the key and value;
// if the entry is removed under it, Next continues from the snapshot key.
type Iterator[K, V any] struct {
	m     *Map[K, V]
	cur   cursor[K, V]
	valid bool
}

// Iterator returns a new iterator positioned before the first element.
func (m *Map[K, V]) Iterator() *Iterator[K, V] {
	return &Iterator[K, V]{m: m}
}

// SeekGE returns an iterator positioned at the first element whose key is
// greater than or equal to key.
func (m *Map[K, V]) SeekGE(key K) *Iterator[K, V] {
	it := m.Iterator()
	it.SeekGE(key)
	return it
}

func (m *Map[K, V]) iteratorAt(c cursor[K, V]) *Iterator[K, V] {
	return &Iterator[K, V]{m: m, cur: c, valid: true}
}

// Valid reports whether the iterator currently points at an element.
func (it *Iterator[K, V]) Valid() bool {
	if it == nil {
		return false
	}
	return it.valid
}

// Key returns the key at the iterator's current position.
// It should only be called when Valid reports true.
func (it *Iterator[K, V]) Key() K {
	var zero K
	if it == nil || !it.valid {
		return zero
	}
	return it.cur.key
}

// Value returns the value observed when the iterator reached its current
// position. It should only be called when Valid reports true.
func (it *Iterator[K, V]) Value() V {
	var zero V
	if it == nil || !it.valid {
		return zero
	}
	return it.cur.value
}

// SeekGE positions the iterator at the first element whose key is
// greater than or equal to the provided key. It returns true if such an
// element exists.
func (it *Iterator[K, V]) SeekGE(key K) bool {
	if it == nil || it.m == nil {
		return false
	}
	w := it.m.acquire()
	defer it.m.release(w)
	c, ok := w.seekCursor(key, false)
	it.set(c, ok)
	return ok
}

// Next advances the iterator to the next element and reports whether it
// successfully moved forward. If the iterator was not valid prior to the
// call, it advances to the first element.
func (it *Iterator[K, V]) Next() bool {
	if it == nil || it.m == nil {
		return false
	}
	m := it.m
	if !it.valid {
		for {
			c, ok, stale := m.walk(m.pool.header().loadNext(0))
			if !stale {
				it.set(c, ok)
				return ok
			}
		}
	}
	if word, ok := m.after(it.cur); ok {
		if c, ok, stale := m.walk(word); !stale {
			it.set(c, ok)
			return ok
		}
	}
	// The current slot was recycled; continue after its key.
	w := m.acquire()
	defer m.release(w)
	c, ok := w.seekCursor(it.cur.key, true)
	it.set(c, ok)
	return ok
}

func (it *Iterator[K, V]) set(c cursor[K, V], ok bool) {
	if !ok {
		it.invalidate()
		return
	}
	it.cur = c
	it.valid = true
}

func (it *Iterator[K, V]) invalidate() {
	it.cur = cursor[K, V]{}
	it.valid = false
}
