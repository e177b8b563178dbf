package arenaskip

import (
	"cmp"
	"fmt"
	randv2 "math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/metailurini/arenaskip/internal/oracle"
)

const benchKeyRange = 1 << 12

type keyPattern int

const (
	patternUniform keyPattern = iota
	patternAscending
	patternZipf
)

var benchPatterns = []struct {
	name string
	kind keyPattern
}{
	{"Uniform", patternUniform},
	{"Ascending", patternAscending},
	{"Zipfian", patternZipf},
}

var benchMixes = []struct {
	name   string
	writes int // percent
}{
	{"ReadMostly", 5},
	{"Mixed", 50},
	{"WriteHeavy", 90},
}

var benchParallelism = []int{1, 2, 4, 8, 16, 32}

// benchOps is one goroutine's view of the structure under test.
type benchOps struct {
	upsert func(k, v int)
	remove func(k int)
	get    func(k int)
}

// keySource yields keys for one goroutine. Ascending keys share a counter
// so that goroutines collectively walk the range in order.
type keySource struct {
	kind    keyPattern
	r       *randv2.Rand
	zipf    *randv2.Zipf
	counter *atomic.Uint64
}

func newKeySource(kind keyPattern, worker int, counter *atomic.Uint64) *keySource {
	r := randv2.New(randv2.NewPCG(uint64(worker)+1, 1_000_003))
	ks := &keySource{kind: kind, r: r, counter: counter}
	if kind == patternZipf {
		ks.zipf = randv2.NewZipf(r, 1.2, 1, benchKeyRange-1)
	}
	return ks
}

func (ks *keySource) next() int {
	switch ks.kind {
	case patternAscending:
		return int((ks.counter.Add(1) - 1) % benchKeyRange)
	case patternZipf:
		return int(ks.zipf.Uint64())
	default:
		return ks.r.IntN(benchKeyRange)
	}
}

// runMix spreads b.N operations across parallel goroutines built by open.
func runMix(b *testing.B, parallel, writes int, kind keyPattern, open func() benchOps) {
	var counter atomic.Uint64
	var issued atomic.Int64
	var wg sync.WaitGroup

	b.ResetTimer()
	for g := range parallel {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ops := open()
			keys := newKeySource(kind, g, &counter)
			r := keys.r
			for issued.Add(1) <= int64(b.N) {
				k := keys.next()
				if r.IntN(100) < writes {
					if r.IntN(2) == 0 {
						ops.upsert(k, r.IntN(1<<16))
					} else {
						ops.remove(k)
					}
					continue
				}
				ops.get(k)
			}
		}()
	}
	wg.Wait()
	b.StopTimer()
}

func BenchmarkMapWorkloads(b *testing.B) {
	for _, pat := range benchPatterns {
		for _, mix := range benchMixes {
			for _, p := range benchParallelism {
				b.Run(fmt.Sprintf("%s/%s/P%d", pat.name, mix.name, p), func(b *testing.B) {
					m := newIntMap(b)
					for i := range benchKeyRange / 2 {
						_, _ = m.Insert(i, i)
					}
					before := m.Stats()

					runMix(b, p, mix.writes, pat.kind, func() benchOps {
						w := m.NewWorker()
						return benchOps{
							upsert: func(k, v int) { _, _, _ = w.InsertOrAssign(k, v) },
							remove: func(k int) { w.Remove(k) },
							get:    func(k int) { w.Get(k) },
						}
					})

					after := m.Stats()
					inserts := max(after.InsertCASSuccesses-before.InsertCASSuccesses, 1)
					b.ReportMetric(float64(after.InsertCASRetries-before.InsertCASRetries)/float64(inserts), "retries/insert")
					b.ReportMetric(float64(after.Restarts-before.Restarts)/float64(b.N), "restarts/op")
				})
			}
		}
	}
}

// BenchmarkMutexOracle runs the same mixes against the sequential reference
// list behind a single mutex, as a baseline for the lock-free map.
func BenchmarkMutexOracle(b *testing.B) {
	for _, pat := range benchPatterns {
		for _, mix := range benchMixes {
			for _, p := range benchParallelism {
				b.Run(fmt.Sprintf("%s/%s/P%d", pat.name, mix.name, p), func(b *testing.B) {
					list := oracle.New[int, int](cmp.Less[int], oracle.NewConfig(oracle.WithMaxLevel(DefaultMaxLevel)))
					for i := range benchKeyRange / 2 {
						list.Put(i, i)
					}
					var mu sync.Mutex

					runMix(b, p, mix.writes, pat.kind, func() benchOps {
						return benchOps{
							upsert: func(k, v int) {
								mu.Lock()
								list.Put(k, v)
								mu.Unlock()
							},
							remove: func(k int) {
								mu.Lock()
								_ = list.Remove(k)
								mu.Unlock()
							},
							get: func(k int) {
								mu.Lock()
								_, _ = list.Get(k)
								mu.Unlock()
							},
						}
					})
				})
			}
		}
	}
}

// BenchmarkNodeChurn measures allocation through the worker cache when
// every insert is followed by a remove of the same key.
func BenchmarkNodeChurn(b *testing.B) {
	for _, cache := range []int{0, 4, DefaultWorkerCacheSize, 64} {
		b.Run(fmt.Sprintf("cache%d", cache), func(b *testing.B) {
			m := newIntMap(b, WithWorkerCacheSize(cache))
			w := m.NewWorker()
			b.ResetTimer()
			for i := range b.N {
				_, _ = w.Insert(i, i)
				w.Remove(i)
			}
			b.StopTimer()
			ps := m.Stats().Pool
			b.ReportMetric(float64(ps.CacheHits)/float64(max(ps.Allocs, 1)), "cache-hit-ratio")
			b.ReportMetric(float64(ps.Slots), "slots")
		})
	}
}
