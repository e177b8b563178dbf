package arenaskip

import "fmt"

// Compact walks every level and snips nodes that removes marked but left
// linked after losing an unlink race. It also re-derives the current level
// from the header. Concurrent operations may continue while it runs.
func (m *Map[K, V]) Compact() {
	w := m.acquire()
	defer m.release(w)
	for l := m.maxLevel; l >= 0; l-- {
		for !w.sweepLevel(l) {
			w.stats.restarts.Add(1)
		}
	}
	h := m.pool.header()
	for l := m.maxLevel; l > 0; l-- {
		if !h.loadNext(l).isNil() {
			m.raiseLevel(l)
			break
		}
	}
	m.lowerLevel()
}

// sweepLevel snips every marked node linked at level l. It reports false if
// the walk must be restarted from the header.
func (w *Worker[K, V]) sweepLevel(l int) bool {
	p := w.m.pool
	predGen := uint32(headerGen)
	pred := p.header()
	word := pred.loadNext(l)
	for {
		if word.marked() || word.ownerGen() != predGen {
			return false
		}
		if word.isNil() {
			return true
		}
		currIdx, currGen := word.index(), word.targetGen()
		curr := p.node(currIdx)
		cword := curr.loadNext(l)
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
		pred, predGen = curr, currGen
		word = cword
	}
}

// Validate checks a quiescent, compacted map: every level is strictly
// ordered and free of deleted nodes, each node linked at a level is linked at
// all levels below it, and the live slot count matches Len.
func (m *Map[K, V]) Validate() error {
	p := m.pool
	h := p.header()
	var below map[uint32]struct{}
	for l := 0; l <= m.maxLevel; l++ {
		here := make(map[uint32]struct{})
		var prev *K
		word := h.loadNext(l)
		for !word.isNil() {
			if word.marked() {
				return fmt.Errorf("%w: level %d: marked link reachable", ErrInconsistent, l)
			}
			idx := word.index()
			n := p.node(idx)
			if n.generation() != word.targetGen() {
				return fmt.Errorf("%w: level %d: stale link to slot %d", ErrInconsistent, l, idx)
			}
			kp := n.key.Load()
			if n.val.Load() == nil {
				return fmt.Errorf("%w: level %d: deleted key %v still linked", ErrInconsistent, l, *kp)
			}
			if int(n.level.Load()) < l {
				return fmt.Errorf("%w: level %d: key %v has level %d", ErrInconsistent, l, *kp, n.level.Load())
			}
			if prev != nil && !m.less(*prev, *kp) {
				return fmt.Errorf("%w: level %d: key %v does not follow %v", ErrInconsistent, l, *kp, *prev)
			}
			if below != nil {
				if _, ok := below[idx]; !ok {
					return fmt.Errorf("%w: level %d: key %v missing from level %d", ErrInconsistent, l, *kp, l-1)
				}
			}
			if l > m.Level() {
				return fmt.Errorf("%w: level %d: key %v above current level %d", ErrInconsistent, l, *kp, m.Level())
			}
			here[idx] = struct{}{}
			prev = kp
			word = n.loadNext(l)
		}
		if l == 0 {
			if got, want := len(here), m.Len(); got != want {
				return fmt.Errorf("%w: %d entries linked, length counter says %d", ErrInconsistent, got, want)
			}
			if live := p.stats().Live; live != int64(len(here)) {
				return fmt.Errorf("%w: %d slots allocated, %d entries linked", ErrInconsistent, live, len(here))
			}
		}
		below = here
	}
	return nil
}
