package arenaskip

import (
	"math/bits"
	"runtime"
	"sync/atomic"
)

type metricShard struct {
	length             atomic.Int64
	insertCASRetries   atomic.Int64
	insertCASSuccesses atomic.Int64
	snips              atomic.Int64
	restarts           atomic.Int64
	fingerHits         atomic.Int64
	fingerMisses       atomic.Int64
	// Pad to cache line size to prevent false sharing.
	_ [8]byte
}

type metrics struct {
	shards []metricShard
	mask   uint64
}

func newMetrics() *metrics {
	shardCount := nextPowerOfTwo(runtime.GOMAXPROCS(0))
	return &metrics{
		shards: make([]metricShard, shardCount),
		mask:   uint64(shardCount - 1),
	}
}

func nextPowerOfTwo(v int) int {
	if v <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(v-1))
}

// shard returns the shard a worker with the given ordinal writes to.
func (m *metrics) shard(ordinal uint64) *metricShard {
	return &m.shards[ordinal&m.mask]
}

func (m *metrics) sum(field func(*metricShard) *atomic.Int64) int64 {
	var total int64
	for i := range m.shards {
		total += field(&m.shards[i]).Load()
	}
	return total
}

func (m *metrics) length() int64 {
	return m.sum(func(s *metricShard) *atomic.Int64 { return &s.length })
}

// Stats is a snapshot of a map's counters. Counters are summed shard by
// shard without a global pause, so under concurrent writes the fields are
// individually accurate but not mutually consistent.
type Stats struct {
	Len                int64
	Level              int
	MaxLevel           int
	InsertCASRetries   int64
	InsertCASSuccesses int64
	Snips              int64
	Restarts           int64
	FingerHits         int64
	FingerMisses       int64
	Pool               PoolStats
}

func (m *metrics) snapshot() Stats {
	return Stats{
		Len:                m.length(),
		InsertCASRetries:   m.sum(func(s *metricShard) *atomic.Int64 { return &s.insertCASRetries }),
		InsertCASSuccesses: m.sum(func(s *metricShard) *atomic.Int64 { return &s.insertCASSuccesses }),
		Snips:              m.sum(func(s *metricShard) *atomic.Int64 { return &s.snips }),
		Restarts:           m.sum(func(s *metricShard) *atomic.Int64 { return &s.restarts }),
		FingerHits:         m.sum(func(s *metricShard) *atomic.Int64 { return &s.fingerHits }),
		FingerMisses:       m.sum(func(s *metricShard) *atomic.Int64 { return &s.fingerMisses }),
	}
}
