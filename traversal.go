package arenaskip

// seek walks levels top down to lo starting at the node (startIdx, startGen)
// and records, per level, the last node whose key is less than key together
// with the successor word it held. Marked successors met on the way are
// snipped. It reports false when the walk hit a deleted or recycled
// predecessor; the caller restarts from the header.
func (w *Worker[K, V]) seek(key K, startIdx, startGen uint32, top, lo int) bool {
	m := w.m
	p := m.pool
	predIdx, predGen := startIdx, startGen
	pred := p.node(predIdx)
	for l := top; l >= lo; l-- {
		word := pred.loadNext(l)
		for {
			if word.marked() || word.ownerGen() != predGen {
				return false
			}
			if word.isNil() {
				break
			}
			currIdx, currGen := word.index(), word.targetGen()
			curr := p.node(currIdx)
			cword := curr.loadNext(l)
			kp := curr.key.Load()
			if curr.generation() != currGen {
				return false
			}
			if cword.marked() {
				repl := cword.rehome(predGen)
				if pred.casNext(l, word, repl) {
					w.stats.snips.Add(1)
					w.unref(currIdx)
					word = repl
				} else {
					word = pred.loadNext(l)
				}
				continue
			}
			if !m.less(*kp, key) {
				break
			}
			predIdx, predGen, pred = currIdx, currGen, curr
			word = cword
		}
		w.preds[l] = predIdx
		w.succs[l] = word
	}
	return true
}

// find fills preds and succs for levels 0..w.filled and returns the first
// node at level 0 whose key is not less than key. equal reports whether that
// node holds key; it may be logically deleted.
func (w *Worker[K, V]) find(key K, useFinger bool) (idx, gen uint32, n *node[K, V], equal bool) {
	m := w.m
	for {
		top := int(m.level.Load())
		startIdx, startGen, from := uint32(headerIndex), uint32(headerGen), top
		if useFinger {
			if fi, fg, fl, ok := w.fingerStart(key); ok {
				startIdx, startGen, from = fi, fg, min(top, fl)
			}
		}
		if !w.seek(key, startIdx, startGen, from, 0) {
			w.stats.restarts.Add(1)
			w.finger = 0
			useFinger = false
			continue
		}
		w.filled = from

		succ := w.succs[0]
		if succ.isNil() {
			return 0, 0, nil, false
		}
		n = m.pool.node(succ.index())
		kp := n.key.Load()
		if n.generation() != succ.targetGen() {
			w.stats.restarts.Add(1)
			continue
		}
		return succ.index(), succ.targetGen(), n, !m.less(key, *kp)
	}
}

// backfill extends the last search to levels up to upto with a pass that
// starts at the header. Levels a finger-started search skipped are filled
// only when an operation actually needs them.
func (w *Worker[K, V]) backfill(key K, upto int) bool {
	if upto <= w.filled {
		return true
	}
	if !w.seek(key, headerIndex, headerGen, upto, w.filled+1) {
		w.stats.restarts.Add(1)
		return false
	}
	w.filled = upto
	return true
}

// refind repeats a full header-anchored search covering at least level.
func (w *Worker[K, V]) refind(key K, level int) {
	for {
		top := max(int(w.m.level.Load()), level)
		if w.seek(key, headerIndex, headerGen, top, 0) {
			w.filled = top
			return
		}
		w.stats.restarts.Add(1)
	}
}

// fingerStart validates the worker's finger as a starting point for key.
func (w *Worker[K, V]) fingerStart(key K) (idx, gen uint32, level int, ok bool) {
	f := w.finger
	if f.isNil() {
		return 0, 0, 0, false
	}
	n := w.m.pool.node(f.index())
	kp := n.key.Load()
	lvl := n.linked.Load()
	w0 := n.loadNext(0)
	if n.generation() != f.targetGen() || w0.marked() || kp == nil || !w.m.less(*kp, key) ||
		!w.spans(n, int(lvl), key) {
		w.stats.fingerMisses.Add(1)
		w.finger = 0
		return 0, 0, 0, false
	}
	w.stats.fingerHits.Add(1)
	return f.index(), f.targetGen(), int(lvl), true
}

// spans reports whether key falls before n's successor at level, so that a
// search starting from n at that level descends instead of walking forward
// along a low level.
func (w *Worker[K, V]) spans(n *node[K, V], level int, key K) bool {
	word := n.loadNext(level)
	if word.isNil() {
		return true
	}
	s := w.m.pool.node(word.index())
	sk := s.key.Load()
	if s.generation() != word.targetGen() || sk == nil {
		return false
	}
	return !w.m.less(*sk, key)
}

// setFinger remembers the level-0 predecessor of the last search.
func (w *Worker[K, V]) setFinger() {
	if !w.fingered {
		return
	}
	idx := w.preds[0]
	if idx == headerIndex {
		w.finger = 0
		return
	}
	w.finger = makeRef(idx, w.succs[0].ownerGen(), 0, false)
}

// cursor is a snapshot of a live node taken while its generation matched.
type cursor[K, V any] struct {
	idx   uint32
	gen   uint32
	key   K
	value V
}

// walk follows level-0 words starting at word, which must have been read
// from a node that was live when it was read, and returns the first live
// node. stale reports a recycled slot on the way; the caller re-seeks.
func (m *Map[K, V]) walk(word ref) (c cursor[K, V], ok, stale bool) {
	for {
		if word.isNil() {
			return c, false, false
		}
		n := m.pool.node(word.index())
		next := n.loadNext(0)
		kp := n.key.Load()
		vp := n.val.Load()
		if n.generation() != word.targetGen() {
			return c, false, true
		}
		if vp != nil {
			return cursor[K, V]{idx: word.index(), gen: word.targetGen(), key: *kp, value: *vp}, true, false
		}
		// Deleted nodes keep a frozen successor once marked, so walking past
		// them is safe while their generation holds.
		word = next
	}
}

// after returns the level-0 word following c, or false if c's slot has been
// recycled since the snapshot.
func (m *Map[K, V]) after(c cursor[K, V]) (ref, bool) {
	word := m.pool.node(c.idx).loadNext(0)
	if word.ownerGen() != c.gen {
		return 0, false
	}
	return word, true
}

// seekCursor returns the first live node whose key is >= key, or > key when
// strict is set.
func (w *Worker[K, V]) seekCursor(key K, strict bool) (cursor[K, V], bool) {
	m := w.m
	for {
		w.find(key, false)
		word := w.succs[0]
		for {
			c, ok, stale := m.walk(word)
			if stale {
				break
			}
			if !ok {
				return c, false
			}
			if !strict || m.less(key, c.key) {
				return c, true
			}
			if word, ok = m.after(c); !ok {
				break
			}
		}
		w.stats.restarts.Add(1)
	}
}
