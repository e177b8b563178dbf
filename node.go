package arenaskip

import "sync/atomic"

// Slot 0 is the null reference and slot 1 is the header. Neither is ever
// handed out by the pool.
const (
	nilIndex    = 0
	headerIndex = 1
	headerGen   = 0

	indexBits = 31
	indexMask = 1<<indexBits - 1
	markBit   = 1 << indexBits
	genBits   = 16
	genMask   = 1<<genBits - 1
)

// ref is a successor word as stored in a node's tower.
//
//	bits  0..30  slot index of the successor (0 = null)
//	bit   31     delete mark: the owning node is being removed at this level
//	bits 32..47  generation of the successor slot when the word was written
//	bits 48..63  generation of the owning slot when the word was written
//
// Every word is written whole with a single atomic store or CAS, so the mark
// and the successor can never be observed out of step. Carrying the owner's
// generation makes a CAS against a slot that was freed and reused fail even
// when the successor index happens to match.
type ref uint64

func makeRef(idx, targetGen, ownerGen uint32, marked bool) ref {
	r := ref(idx&indexMask) |
		ref(targetGen&genMask)<<32 |
		ref(ownerGen&genMask)<<48
	if marked {
		r |= markBit
	}
	return r
}

func (r ref) index() uint32     { return uint32(r & indexMask) }
func (r ref) marked() bool      { return r&markBit != 0 }
func (r ref) isNil() bool       { return r.index() == nilIndex }
func (r ref) targetGen() uint32 { return uint32(r>>32) & genMask }
func (r ref) ownerGen() uint32  { return uint32(r >> 48) }

func (r ref) withMark() ref { return r | markBit }

// rehome returns the same unmarked successor as it would be stored in a node
// of generation gen.
func (r ref) rehome(gen uint32) ref {
	return r&^(markBit|genMask<<48) | ref(gen&genMask)<<48
}

// node is one arena slot. Payload fields are atomic pointers so a reader
// holding a stale reference observes either the old payload or nil, never a
// torn value; the generation check that follows every read decides whether
// what was read may be used.
type node[K, V any] struct {
	gen   atomic.Uint32
	level atomic.Int32
	// linked is the highest level the inserter has published so far. Only
	// levels up to it may be entered through the node from a finger.
	linked atomic.Int32
	// refs counts the levels the node is linked at plus one hold owned by
	// the inserting worker. The slot goes back to the pool at zero.
	refs atomic.Int32
	key  atomic.Pointer[K]
	// val is nil once the node is logically deleted.
	val  atomic.Pointer[V]
	next []atomic.Uint64
}

func (n *node[K, V]) generation() uint32 {
	return n.gen.Load() & genMask
}

func (n *node[K, V]) loadNext(level int) ref {
	return ref(n.next[level].Load())
}

func (n *node[K, V]) storeNext(level int, r ref) {
	n.next[level].Store(uint64(r))
}

func (n *node[K, V]) casNext(level int, old, want ref) bool {
	return n.next[level].CompareAndSwap(uint64(old), uint64(want))
}

// markLevel sets the delete mark on the node's word at level, provided the
// node still has generation gen. It reports false when the slot was recycled.
func (n *node[K, V]) markLevel(level int, gen uint32) bool {
	for {
		w := n.loadNext(level)
		if w.ownerGen() != gen {
			return false
		}
		if w.marked() || n.casNext(level, w, w.withMark()) {
			return true
		}
	}
}
