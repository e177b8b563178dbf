package arenaskip

import (
	"math"
	"testing"
)

func TestRandomLevelDistribution(t *testing.T) {
	const p = 0.5
	numSamples := 1000000
	counts := make(map[int]int)
	r := newRNG(0x123456789abcdef)
	for range numSamples {
		counts[r.level(MaxLevelLimit)]++
	}

	// Check if the distribution is roughly geometric: with a fair coin the
	// number of nodes reaching level i+1 is about half of those reaching i.
	for i := 0; i < MaxLevelLimit; i++ {
		atLeast := 0
		for l, c := range counts {
			if l >= i {
				atLeast += c
			}
		}
		if atLeast == 0 {
			continue
		}
		promoted := atLeast - counts[i]
		ratio := float64(promoted) / float64(atLeast)

		// Promotions from level i follow Binomial(atLeast, p); allow five
		// standard deviations.
		stdDev := math.Sqrt(p * (1 - p) / float64(atLeast))
		tolerance := 5 * stdDev

		if math.Abs(ratio-p) > tolerance {
			t.Errorf("Expected promotion ratio at level %d to be around %.2f ± %.4f, but got %.2f", i, p, tolerance, ratio)
		}
	}
}

func TestRandomLevelIsClamped(t *testing.T) {
	r := newRNG(42)
	for range 100000 {
		if l := r.level(3); l < 0 || l > 3 {
			t.Fatalf("level %d outside [0, 3]", l)
		}
	}
	if l := r.level(0); l != 0 {
		t.Fatalf("expected level 0 with a zero cap, got %d", l)
	}
}

func TestSeededWorkersAreDeterministic(t *testing.T) {
	draw := func() []int {
		m := newIntMap(t, WithSeed(99))
		w := m.NewWorker()
		levels := make([]int, 64)
		for i := range levels {
			levels[i] = w.rng.level(m.MaxLevel())
		}
		return levels
	}
	a, b := draw(), draw()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("seeded level streams diverge at %d: %d != %d", i, a[i], b[i])
		}
	}
}

func BenchmarkRandomLevel(b *testing.B) {
	r := newRNG(newRandomSeed())
	for i := 0; i < b.N; i++ {
		r.level(DefaultMaxLevel)
	}
}
