// Package oracle provides a single-threaded ordered map used as the
// reference model when checking the concurrent map.
package oracle

import (
	"errors"
	"math/bits"
	randv2 "math/rand/v2"
)

// ErrKeyNotFound is returned when a key is absent from the list.
var ErrKeyNotFound = errors.New("oracle: key not found")

// Config holds configuration for the List.
type Config struct {
	// maxLevel is the maximum height of the list
	maxLevel int
	// seed fixes the level generator; zero draws a random seed
	seed uint64
}

// NewConfig creates a Config with default values.
func NewConfig(opts ...func(*Config)) Config {
	c := Config{maxLevel: 32}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithMaxLevel sets the maximum height of the list.
func WithMaxLevel(level int) func(*Config) {
	return func(c *Config) { c.maxLevel = max(level, 1) }
}

// WithSeed makes level generation reproducible.
func WithSeed(seed uint64) func(*Config) {
	return func(c *Config) { c.seed = seed }
}

// Entry is a key/value pair.
type Entry[K, V any] struct {
	Key   K
	Value V
}

type node[K, V any] struct {
	key      K
	value    V
	forwards []*node[K, V]
}

// List is a sequential skip list ordered by a less function. It is not safe
// for concurrent use.
type List[K, V any] struct {
	less   func(a, b K) bool
	head   *node[K, V]
	level  int
	length int
	config Config
	rng    randv2.Source
}

// New creates an empty List ordered by less.
func New[K, V any](less func(a, b K) bool, config Config) *List[K, V] {
	seed := config.seed
	if seed == 0 {
		seed = randv2.Uint64()
	}
	return &List[K, V]{
		less:   less,
		head:   &node[K, V]{forwards: make([]*node[K, V], config.maxLevel)},
		level:  1,
		config: config,
		rng:    randv2.NewPCG(seed, seed^0x9e3779b97f4a7c15),
	}
}

// search fills update with the rightmost node before key on each level and
// returns the first node whose key is not less than key.
func (l *List[K, V]) search(key K, update []*node[K, V]) *node[K, V] {
	rn := l.head
	for rl := l.level - 1; rl >= 0; rl-- {
		for rn.forwards[rl] != nil && l.less(rn.forwards[rl].key, key) {
			rn = rn.forwards[rl]
		}
		if update != nil {
			update[rl] = rn
		}
	}
	return rn.forwards[0]
}

func (l *List[K, V]) equal(a, b K) bool {
	return !l.less(a, b) && !l.less(b, a)
}

// Put inserts or replaces the value under key and reports whether the key
// was new.
func (l *List[K, V]) Put(key K, value V) bool {
	return l.put(key, value, true)
}

// Insert adds key only if it is absent and reports whether it did.
func (l *List[K, V]) Insert(key K, value V) bool {
	return l.put(key, value, false)
}

func (l *List[K, V]) put(key K, value V, replace bool) bool {
	update := make([]*node[K, V], l.config.maxLevel)
	rn := l.search(key, update)
	if rn != nil && l.equal(rn.key, key) {
		if replace {
			rn.value = value
		}
		return false
	}

	newLevel := l.randomLevel()
	for ; l.level < newLevel; l.level++ {
		update[l.level] = l.head
	}
	n := &node[K, V]{key: key, value: value, forwards: make([]*node[K, V], newLevel)}
	for i := 0; i < newLevel; i++ {
		n.forwards[i] = update[i].forwards[i]
		update[i].forwards[i] = n
	}
	l.length++
	return true
}

// Get retrieves the value associated with key.
func (l *List[K, V]) Get(key K) (V, error) {
	rn := l.search(key, nil)
	if rn != nil && l.equal(rn.key, key) {
		return rn.value, nil
	}
	var zero V
	return zero, ErrKeyNotFound
}

// Remove deletes key. It returns ErrKeyNotFound if the key is absent.
func (l *List[K, V]) Remove(key K) error {
	update := make([]*node[K, V], l.config.maxLevel)
	rn := l.search(key, update)
	if rn == nil || !l.equal(rn.key, key) {
		return ErrKeyNotFound
	}
	for i := 0; i < l.level; i++ {
		if update[i].forwards[i] != rn {
			break
		}
		update[i].forwards[i] = rn.forwards[i]
	}
	for l.level > 1 && l.head.forwards[l.level-1] == nil {
		l.level--
	}
	l.length--
	return nil
}

// Len returns the number of entries.
func (l *List[K, V]) Len() int {
	return l.length
}

// Clear removes all entries.
func (l *List[K, V]) Clear() {
	l.head = &node[K, V]{forwards: make([]*node[K, V], l.config.maxLevel)}
	l.level = 1
	l.length = 0
}

// Range returns the entries with lo <= key <= hi in ascending order.
func (l *List[K, V]) Range(lo, hi K) []Entry[K, V] {
	var out []Entry[K, V]
	for rn := l.search(lo, nil); rn != nil && !l.less(hi, rn.key); rn = rn.forwards[0] {
		out = append(out, Entry[K, V]{Key: rn.key, Value: rn.value})
	}
	return out
}

// Entries returns every entry in ascending key order.
func (l *List[K, V]) Entries() []Entry[K, V] {
	out := make([]Entry[K, V], 0, l.length)
	for rn := l.head.forwards[0]; rn != nil; rn = rn.forwards[0] {
		out = append(out, Entry[K, V]{Key: rn.key, Value: rn.value})
	}
	return out
}

// Keys returns every key in ascending order.
func (l *List[K, V]) Keys() []K {
	out := make([]K, 0, l.length)
	for rn := l.head.forwards[0]; rn != nil; rn = rn.forwards[0] {
		out = append(out, rn.key)
	}
	return out
}

func (l *List[K, V]) randomLevel() int {
	lvl := 1 + bits.TrailingZeros64(l.rng.Uint64())
	if lvl > l.config.maxLevel {
		return l.config.maxLevel
	}
	return lvl
}
