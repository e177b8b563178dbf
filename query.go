package arenaskip

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"slices"
)

// first returns the first live entry at level 0.
func (m *Map[K, V]) first() (cursor[K, V], bool) {
	for {
		c, ok, stale := m.walk(m.pool.header().loadNext(0))
		if !stale {
			return c, ok
		}
	}
}

// scan calls yield for every live entry from c onwards in key order until
// yield returns false. Entries inserted or removed during the scan may or
// may not be seen; keys are never repeated or out of order.
func (m *Map[K, V]) scan(w *Worker[K, V], c cursor[K, V], ok bool, yield func(cursor[K, V]) bool) {
	for ok {
		if !yield(c) {
			return
		}
		var (
			next  cursor[K, V]
			stale bool
		)
		word, live := m.after(c)
		if live {
			next, ok, stale = m.walk(word)
		}
		if !live || stale {
			next, ok = w.seekCursor(c.key, true)
		}
		c = next
	}
}

// Range returns the entries with lo <= key <= hi in ascending key order.
func (m *Map[K, V]) Range(lo, hi K) []Entry[K, V] {
	if m.less(hi, lo) {
		return nil
	}
	w := m.acquire()
	defer m.release(w)
	var out []Entry[K, V]
	c, ok := w.seekCursor(lo, false)
	m.scan(w, c, ok, func(c cursor[K, V]) bool {
		if m.less(hi, c.key) {
			return false
		}
		out = append(out, Entry[K, V]{Key: c.key, Value: c.value})
		return true
	})
	return out
}

// Kth returns the entry at 0-based position k in key order.
func (m *Map[K, V]) Kth(k int) (Entry[K, V], error) {
	if k < 0 {
		return Entry[K, V]{}, fmt.Errorf("%w: index %d is negative", ErrIndexOutOfRange, k)
	}
	w := m.acquire()
	defer m.release(w)
	var (
		found Entry[K, V]
		seen  int
	)
	c, ok := m.first()
	m.scan(w, c, ok, func(c cursor[K, V]) bool {
		if seen == k {
			found = Entry[K, V]{Key: c.key, Value: c.value}
		}
		seen++
		return seen <= k
	})
	if seen <= k {
		return Entry[K, V]{}, fmt.Errorf("%w: index %d, size %d", ErrIndexOutOfRange, k, seen)
	}
	return found, nil
}

// All returns an iterator over live entries in ascending key order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		w := m.acquire()
		defer m.release(w)
		c, ok := m.first()
		m.scan(w, c, ok, func(c cursor[K, V]) bool {
			return yield(c.key, c.value)
		})
	}
}

// Keys returns the live keys in ascending order.
func (m *Map[K, V]) Keys() []K {
	var keys []K
	for k := range m.All() {
		keys = append(keys, k)
	}
	return keys
}

// Entries returns the live entries in ascending key order.
func (m *Map[K, V]) Entries() []Entry[K, V] {
	var out []Entry[K, V]
	for k, v := range m.All() {
		out = append(out, Entry[K, V]{Key: k, Value: v})
	}
	return out
}

func (m *Map[K, V]) compare(a, b K) int {
	switch {
	case m.less(a, b):
		return -1
	case m.less(b, a):
		return 1
	default:
		return 0
	}
}

// BulkInsert sorts entries by key and inserts them in order, skipping keys
// already present. The first of several entries with the same key wins. It
// returns the number of entries created and stops at the first error.
func (m *Map[K, V]) BulkInsert(entries []Entry[K, V]) (int, error) {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry[K, V]) int {
		return m.compare(a.Key, b.Key)
	})
	w := m.acquire()
	defer m.release(w)
	created := 0
	for _, e := range sorted {
		ok, err := w.Insert(e.Key, e.Value)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// BulkRemove sorts keys and removes them in order. It returns the number of
// entries removed.
func (m *Map[K, V]) BulkRemove(keys []K) int {
	sorted := slices.Clone(keys)
	slices.SortFunc(sorted, m.compare)
	w := m.acquire()
	defer m.release(w)
	removed := 0
	for _, k := range sorted {
		if w.Remove(k) {
			removed++
		}
	}
	return removed
}

// Dump writes every level from the current top down to 0, listing the keys
// of live nodes linked there. It is meant for debugging quiescent maps.
func (m *Map[K, V]) Dump(out io.Writer) error {
	bw := bufio.NewWriter(out)
	p := m.pool
	for l := m.Level(); l >= 0; l-- {
		fmt.Fprintf(bw, "level %2d:", l)
		word := p.header().loadNext(l)
		for !word.isNil() {
			n := p.node(word.index())
			next := n.loadNext(l)
			kp := n.key.Load()
			vp := n.val.Load()
			if n.generation() != word.targetGen() {
				fmt.Fprint(bw, " ~")
				break
			}
			if vp != nil {
				fmt.Fprintf(bw, " %v", *kp)
			}
			word = next
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}
