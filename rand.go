package arenaskip

import (
	"math/bits"
	"time"
)

const defaultSeed = uint64(0xdeadbeefcafebabe)

func newRandomSeed() uint64 {
	seed := uint64(time.Now().UnixNano())
	if seed == 0 {
		seed = defaultSeed
	}
	return seed
}

// mixSeed spreads a base seed over worker ordinals so neighbouring workers
// do not draw correlated streams.
func mixSeed(base, ordinal uint64) uint64 {
	z := base + (ordinal+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	if z == 0 {
		z = defaultSeed
	}
	return z
}

// rng is an xorshift64* generator owned by a single worker.
type rng struct {
	state uint64
}

func newRNG(seed uint64) rng {
	if seed == 0 {
		seed = defaultSeed
	}
	return rng{state: seed}
}

func (r *rng) next() uint64 {
	x := r.state
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	r.state = x
	return x * 2685821657736338717
}

// level draws a tower height by fair coin flips: every trailing zero bit is
// one more promotion, so level >= i with probability 2^-i. The result is
// clamped to maxLevel.
func (r *rng) level(maxLevel int) int {
	if maxLevel <= 0 {
		return 0
	}
	level := bits.TrailingZeros64(r.next())
	if level > maxLevel {
		return maxLevel
	}
	return level
}
