package arenaskip

import (
	"fmt"
	"log/slog"
	"math/bits"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// block is one carved run of slots. Towers of every slot in the block are
// subslices of one backing array.
type block[K, V any] struct {
	nodes []node[K, V]
	links []atomic.Uint64
}

// nodePool hands out arena slots in three tiers: the calling worker's private
// cache, then a shared lock-free stack, then a mutex-guarded slow path that
// carves a new block. Slot indices are stable for the life of the pool;
// blocks are never released.
type nodePool[K, V any] struct {
	blockShift uint
	blockMask  uint32
	towerSize  int

	// blocks is replaced, never mutated in place below its published length.
	blocks atomic.Pointer[[]*block[K, V]]

	// free is the shared stack head: ABA tag in the high 32 bits, slot index
	// in the low 32. A free slot's next[0] word links to the slot below it.
	free atomic.Uint64

	mu     sync.Mutex
	budget *semaphore.Weighted
	logger *slog.Logger

	blocksCarved atomic.Int64
	allocs       atomic.Int64
	frees        atomic.Int64
	cacheHits    atomic.Int64
	stackPops    atomic.Int64
	slowPaths    atomic.Int64
}

// PoolStats is a point-in-time view of the node arena.
type PoolStats struct {
	Blocks    int64
	Slots     int64
	Live      int64
	Allocs    int64
	Frees     int64
	CacheHits int64
	StackPops int64
	SlowPaths int64
}

func newNodePool[K, V any](cfg config) (*nodePool[K, V], error) {
	p := &nodePool[K, V]{
		blockShift: uint(bits.TrailingZeros(uint(cfg.blockSize))),
		blockMask:  uint32(cfg.blockSize - 1),
		towerSize:  cfg.maxLevel + 1,
		logger:     cfg.logger,
	}
	if cfg.maxNodes > 0 {
		// Reserved slots 0 and 1 do not count against the caller's budget.
		slots := (cfg.maxNodes + 2 + int64(p.blockMask)) &^ int64(p.blockMask)
		p.budget = semaphore.NewWeighted(slots)
	}
	empty := make([]*block[K, V], 0, 8)
	p.blocks.Store(&empty)

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.carveLocked(); err != nil {
		return nil, err
	}
	size := uint32(1) << p.blockShift
	for idx := uint32(headerIndex + 1); idx < size; idx++ {
		p.push(idx)
	}
	return p, nil
}

func (p *nodePool[K, V]) blockSize() int {
	return 1 << p.blockShift
}

func (p *nodePool[K, V]) node(idx uint32) *node[K, V] {
	blocks := *p.blocks.Load()
	return &blocks[idx>>p.blockShift].nodes[idx&p.blockMask]
}

func (p *nodePool[K, V]) header() *node[K, V] {
	return p.node(headerIndex)
}

// carveLocked appends a fresh block and returns the index of its first slot.
// The caller holds p.mu.
func (p *nodePool[K, V]) carveLocked() (uint32, error) {
	blocks := *p.blocks.Load()
	size := p.blockSize()
	first := uint64(len(blocks)) << p.blockShift
	if first+uint64(size) > indexMask+1 {
		p.logger.Error("node arena exhausted", "reason", "index space", "blocks", len(blocks))
		return 0, fmt.Errorf("%w: %w", ErrArenaExhausted, ErrIndexSpaceExhausted)
	}
	if p.budget != nil && !p.budget.TryAcquire(int64(size)) {
		p.logger.Error("node arena exhausted", "reason", "budget", "blocks", len(blocks))
		return 0, fmt.Errorf("%w: %w", ErrArenaExhausted, ErrMemoryLimitExceeded)
	}

	b := &block[K, V]{
		nodes: make([]node[K, V], size),
		links: make([]atomic.Uint64, size*p.towerSize),
	}
	for i := range b.nodes {
		lo := i * p.towerSize
		b.nodes[i].next = b.links[lo : lo+p.towerSize : lo+p.towerSize]
		for l := range b.nodes[i].next {
			b.nodes[i].next[l].Store(uint64(makeRef(nilIndex, 0, 0, true)))
		}
	}
	if len(blocks) == 0 {
		// The header starts linked to nothing at every level.
		for l := range b.nodes[headerIndex].next {
			b.nodes[headerIndex].next[l].Store(uint64(makeRef(nilIndex, 0, headerGen, false)))
		}
	}

	grown := append(blocks, b)
	p.blocks.Store(&grown)
	p.blocksCarved.Add(1)
	p.logger.Debug("carved node block", "block", len(grown)-1, "first_slot", first, "slots", size)
	return uint32(first), nil
}

func (p *nodePool[K, V]) push(idx uint32) {
	n := p.node(idx)
	gen := n.generation()
	for {
		head := p.free.Load()
		n.storeNext(0, makeRef(uint32(head), 0, gen, true))
		if p.free.CompareAndSwap(head, (head>>32+1)<<32|uint64(idx)) {
			return
		}
	}
}

func (p *nodePool[K, V]) pop() (uint32, bool) {
	for {
		head := p.free.Load()
		idx := uint32(head)
		if idx == nilIndex {
			return 0, false
		}
		below := p.node(idx).loadNext(0).index()
		if p.free.CompareAndSwap(head, (head>>32+1)<<32|uint64(below)) {
			return idx, true
		}
	}
}

func (p *nodePool[K, V]) popSlow() (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slowPaths.Add(1)
	if idx, ok := p.pop(); ok {
		return idx, nil
	}
	first, err := p.carveLocked()
	if err != nil {
		return 0, err
	}
	end := first + uint32(p.blockSize())
	for idx := first + 1; idx < end; idx++ {
		p.push(idx)
	}
	return first, nil
}

func (p *nodePool[K, V]) take(c *localCache) (uint32, error) {
	if idx, ok := c.pop(); ok {
		p.cacheHits.Add(1)
		return idx, nil
	}
	if idx, ok := p.pop(); ok {
		p.stackPops.Add(1)
		return idx, nil
	}
	return p.popSlow()
}

// allocate returns an unpublished slot initialized with key, value and an
// empty tower of the given level. The caller owns the single reference.
func (p *nodePool[K, V]) allocate(c *localCache, key K, value V, level int) (uint32, *node[K, V], error) {
	idx, err := p.take(c)
	if err != nil {
		return 0, nil, err
	}
	p.allocs.Add(1)
	n := p.node(idx)
	gen := n.generation()
	n.level.Store(int32(level))
	n.linked.Store(0)
	n.refs.Store(1)
	n.key.Store(&key)
	n.val.Store(&value)
	for l := 0; l <= level; l++ {
		n.storeNext(l, makeRef(nilIndex, 0, gen, false))
	}
	return idx, n, nil
}

// release recycles a slot nobody can reach any more. Bumping the generation
// first turns every outstanding reference to the slot stale.
func (p *nodePool[K, V]) release(c *localCache, idx uint32) {
	n := p.node(idx)
	gen := n.gen.Add(1) & genMask
	n.key.Store(nil)
	n.val.Store(nil)
	n.level.Store(0)
	n.linked.Store(0)
	for l := range n.next {
		n.storeNext(l, makeRef(nilIndex, 0, gen, true))
	}
	p.frees.Add(1)
	if c.push(idx) {
		return
	}
	p.push(idx)
}

// drain moves every cached slot to the shared stack.
func (p *nodePool[K, V]) drain(c *localCache) {
	for {
		idx, ok := c.pop()
		if !ok {
			return
		}
		p.push(idx)
	}
}

func (p *nodePool[K, V]) stats() PoolStats {
	blocks := p.blocksCarved.Load()
	allocs := p.allocs.Load()
	frees := p.frees.Load()
	return PoolStats{
		Blocks:    blocks,
		Slots:     blocks << p.blockShift,
		Live:      allocs - frees,
		Allocs:    allocs,
		Frees:     frees,
		CacheHits: p.cacheHits.Load(),
		StackPops: p.stackPops.Load(),
		SlowPaths: p.slowPaths.Load(),
	}
}

// localCache is a worker's private stack of free slot indices. It is only
// touched by the goroutine currently holding the worker, or by the cleanup
// that runs after the worker became unreachable.
type localCache struct {
	idx []uint32
	max int
}

func newLocalCache(max int) *localCache {
	return &localCache{idx: make([]uint32, 0, max), max: max}
}

func (c *localCache) pop() (uint32, bool) {
	if c == nil || len(c.idx) == 0 {
		return 0, false
	}
	last := len(c.idx) - 1
	idx := c.idx[last]
	c.idx = c.idx[:last]
	return idx, true
}

func (c *localCache) push(idx uint32) bool {
	if c == nil || len(c.idx) >= c.max {
		return false
	}
	c.idx = append(c.idx, idx)
	return true
}

func (c *localCache) len() int {
	if c == nil {
		return 0
	}
	return len(c.idx)
}
