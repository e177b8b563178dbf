package arenaskip

// insert links key with value unless a live node already holds key. With
// assign set, an existing node gets value swapped in instead. It returns the
// node holding key after the call.
func (w *Worker[K, V]) insert(key K, value V, assign bool) (cursor[K, V], bool, error) {
	m := w.m
	var (
		n      *node[K, V]
		newIdx uint32
		newGen uint32
		level  int
	)
	for {
		idx, gen, cur, equal := w.find(key, w.fingered)
		if equal {
			vp := cur.val.Load()
			if cur.generation() != gen {
				continue
			}
			if vp == nil {
				// A remove is in flight; finish marking so the next search
				// snips the node out of level 0.
				w.markTower(cur, gen)
				continue
			}
			stored := *vp
			if assign {
				if !cur.val.CompareAndSwap(vp, &value) {
					continue
				}
				stored = value
			}
			if n != nil {
				n.refs.Store(0)
				m.pool.release(w.cache, newIdx)
			}
			w.setFinger()
			return cursor[K, V]{idx: idx, gen: gen, key: key, value: stored}, false, nil
		}

		if n == nil {
			level = w.rng.level(m.maxLevel)
			var err error
			newIdx, n, err = m.pool.allocate(w.cache, key, value, level)
			if err != nil {
				return cursor[K, V]{}, false, err
			}
			newGen = n.generation()
			m.raiseLevel(level)
		}
		if !w.backfill(key, level) {
			continue
		}

		succ := w.succs[0]
		n.storeNext(0, succ.rehome(newGen))
		n.refs.Add(1)
		if !m.pool.node(w.preds[0]).casNext(0, succ, makeRef(newIdx, newGen, succ.ownerGen(), false)) {
			n.refs.Add(-1)
			w.stats.insertCASRetries.Add(1)
			continue
		}
		break
	}
	w.stats.insertCASSuccesses.Add(1)
	w.stats.length.Add(1)
	if afterBottomLinkHook != nil {
		afterBottomLinkHook(key)
	}

	w.linkUpper(key, newIdx, newGen, n, level)
	w.setFinger()
	if n.loadNext(0).marked() {
		// Removed while the tower was being built: a level linked after the
		// remover's unlink attempt may still point at the node.
		w.refind(key, level)
	}
	w.unref(newIdx)
	return cursor[K, V]{idx: newIdx, gen: newGen, key: key, value: value}, true, nil
}

// linkUpper links levels 1..level of a node already published at level 0.
// It stops early once the node is marked for deletion.
func (w *Worker[K, V]) linkUpper(key K, idx, gen uint32, n *node[K, V], level int) {
	p := w.m.pool
	for l := 1; l <= level; l++ {
		for {
			own := n.loadNext(l)
			if own.marked() {
				return
			}
			succ := w.succs[l]
			want := succ.rehome(gen)
			if own != want && !n.casNext(l, own, want) {
				continue
			}
			n.refs.Add(1)
			if p.node(w.preds[l]).casNext(l, succ, makeRef(idx, gen, succ.ownerGen(), false)) {
				n.linked.Store(int32(l))
				break
			}
			n.refs.Add(-1)
			w.stats.insertCASRetries.Add(1)
			w.refind(key, level)
		}
	}
}

// remove logically deletes key, marks its tower and makes one unlink
// attempt per level. Levels whose attempt loses a race stay linked until a
// later traversal snips them.
func (w *Worker[K, V]) remove(key K) (V, bool) {
	m := w.m
	var zero V
	for {
		idx, gen, n, equal := w.find(key, w.fingered)
		if !equal {
			w.setFinger()
			return zero, false
		}
		vp := n.val.Load()
		level := int(n.level.Load())
		if n.generation() != gen {
			continue
		}
		if vp == nil {
			w.markTower(n, gen)
			continue
		}
		if !n.val.CompareAndSwap(vp, nil) {
			continue
		}
		w.stats.length.Add(-1)
		if afterLogicalDeleteHook != nil {
			afterLogicalDeleteHook(key)
		}

		if _, ok := w.markTower(n, gen); ok && w.backfill(key, level) {
			for l := 0; l <= level; l++ {
				succ := w.succs[l]
				if succ.index() != idx || succ.targetGen() != gen {
					continue
				}
				if skipUnlinkHook != nil && skipUnlinkHook(l) {
					continue
				}
				next := n.loadNext(l)
				if next.ownerGen() != gen {
					break
				}
				if m.pool.node(w.preds[l]).casNext(l, succ, next.rehome(succ.ownerGen())) {
					w.stats.snips.Add(1)
					w.unref(idx)
				}
			}
		}
		m.lowerLevel()
		w.setFinger()
		return *vp, true
	}
}

// markTower sets the delete mark on every level of n from the top down. It
// reports false if the slot was recycled before marking completed.
func (w *Worker[K, V]) markTower(n *node[K, V], gen uint32) (int, bool) {
	level := int(n.level.Load())
	if n.generation() != gen {
		return 0, false
	}
	for l := level; l >= 0; l-- {
		if !n.markLevel(l, gen) {
			return level, false
		}
	}
	return level, true
}

// unref drops one reference to the slot and recycles it at zero.
func (w *Worker[K, V]) unref(idx uint32) {
	p := w.m.pool
	if p.node(idx).refs.Add(-1) == 0 {
		p.release(w.cache, idx)
	}
}

func (m *Map[K, V]) raiseLevel(level int) {
	for {
		cur := m.level.Load()
		if int32(level) <= cur {
			return
		}
		if m.level.CompareAndSwap(cur, int32(level)) {
			m.logger.Debug("raised list level", "from", cur, "to", level)
			return
		}
	}
}

// lowerLevel drops the current level past empty header levels. A lost race
// leaves the level as it is.
func (m *Map[K, V]) lowerLevel() {
	top := m.level.Load()
	h := m.pool.header()
	l := top
	for l > 0 && h.loadNext(int(l)).isNil() {
		l--
	}
	if l < top && m.level.CompareAndSwap(top, l) {
		m.logger.Debug("lowered list level", "from", top, "to", l)
	}
}
