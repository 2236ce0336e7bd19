package models

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Random is the source of randomness used by the solver.
type Random interface {
	// UniformInt returns a value in [min, max].
	UniformInt(min, max int) int
	// UniformReal returns a value in [min, max).
	UniformReal(min, max float64) float64
	// IsHit returns true with the given probability.
	IsHit(probability float64) bool
	IsHeadNotTails() bool
	// Weighted returns an index picked proportionally to the weights.
	Weighted(weights []int) int
	Shuffle(n int, swap func(i, j int))
}

// DefaultRandom is a seeded generator safe for concurrent use.
type DefaultRandom struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a generator. Zero seed means a clock based seed.
func NewRandom(seed int64) *DefaultRandom {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DefaultRandom{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))}
}

func (r *DefaultRandom) UniformInt(min, max int) int {
	if max <= min {
		return min
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return min + r.rng.IntN(max-min+1)
}

func (r *DefaultRandom) UniformReal(min, max float64) float64 {
	if max <= min {
		return min
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return min + r.rng.Float64()*(max-min)
}

func (r *DefaultRandom) IsHit(probability float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < probability
}

func (r *DefaultRandom) IsHeadNotTails() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(2) == 0
}

func (r *DefaultRandom) Weighted(weights []int) int {
	sum := 0
	for _, w := range weights {
		if w > 0 {
			sum += w
		}
	}
	if sum == 0 {
		return 0
	}
	r.mu.Lock()
	pick := r.rng.IntN(sum)
	r.mu.Unlock()
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if pick < w {
			return i
		}
		pick -= w
	}
	return len(weights) - 1
}

func (r *DefaultRandom) Shuffle(n int, swap func(i, j int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rng.Shuffle(n, swap)
}
