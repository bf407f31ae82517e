// Package random provides the seeded pseudo-random primitives every generator draws from.
package random

import (
	"encoding/hex"
	"errors"
	"math"
	"math/rand"
	"time"
)

// epsilon replaces a zero uniform draw before it reaches a log transform.
const epsilon = 1e-12

// poissonNormalCutoff is the lambda above which exp(-lambda) loses too much
// precision for Knuth's algorithm and a normal approximation is used instead.
const poissonNormalCutoff = 500

// ErrWeightsMismatch is returned by WeightedChoice when items and weights disagree.
var ErrWeightsMismatch = errors.New("items and weights must be non-empty and of equal length")

// Kernel wraps a seeded source. A Kernel is not safe for concurrent use; hand
// each goroutine its own Fork.
type Kernel struct {
	rng  *rand.Rand
	seed int64
}

// New returns a kernel seeded with seed.
func New(seed int64) *Kernel {
	k := NewFromSource(rand.NewSource(seed))
	k.seed = seed
	return k
}

// NewFromSource returns a kernel drawing from src. Seed reports zero for such
// kernels.
func NewFromSource(src rand.Source) *Kernel {
	return &Kernel{rng: rand.New(src)}
}

// NewUnseeded returns a kernel seeded from the wall clock.
func NewUnseeded() *Kernel {
	return New(time.Now().UnixNano())
}

// Seed reports the seed the kernel was created with.
func (k *Kernel) Seed() int64 {
	return k.seed
}

// Fork derives an independent kernel from the next value of this one.
func (k *Kernel) Fork() *Kernel {
	return New(k.rng.Int63())
}

// Float64 returns a uniform value in [0,1).
func (k *Kernel) Float64() float64 {
	return k.rng.Float64()
}

// Bool reports true with probability p.
func (k *Kernel) Bool(p float64) bool {
	return k.rng.Float64() < p
}

// UniformInt returns an integer in [min,max], both inclusive.
func (k *Kernel) UniformInt(min, max int) int {
	if max < min {
		min, max = max, min
	}
	return min + k.rng.Intn(max-min+1)
}

// UniformFloat returns a value in [min,max).
func (k *Kernel) UniformFloat(min, max float64) float64 {
	return min + k.rng.Float64()*(max-min)
}

// Gaussian draws from N(mu, sigma) with the Box-Muller transform.
func (k *Kernel) Gaussian(mu, sigma float64) float64 {
	u1 := k.nonZero()
	u2 := k.rng.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return mu + sigma*z
}

// ExponentialInRange maps exp(-5u) into [min,max]. The result piles up near
// min and thins out toward max; it is a shaping curve, not an exponential CDF.
func (k *Kernel) ExponentialInRange(min, max float64) float64 {
	u := k.rng.Float64()
	return min + (max-min)*math.Exp(-5*u)
}

// Poisson draws a count with mean lambda using Knuth's multiplicative method.
func (k *Kernel) Poisson(lambda float64) int {
	if lambda <= 0 || math.IsNaN(lambda) {
		return 0
	}
	if lambda > poissonNormalCutoff {
		n := math.Round(k.Gaussian(lambda, math.Sqrt(lambda)))
		if n < 0 {
			return 0
		}
		return int(n)
	}
	limit := math.Exp(-lambda)
	count := 0
	p := 1.0
	for {
		count++
		p *= k.rng.Float64()
		if p <= limit {
			break
		}
	}
	return count - 1
}

// Intn returns a value in [0,n).
func (k *Kernel) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return k.rng.Intn(n)
}

// Read fills p with pseudo-random bytes so the kernel can back uuid and ID generation.
func (k *Kernel) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(k.rng.Intn(256))
	}
	return len(p), nil
}

// HexID returns nBytes of randomness hex-encoded.
func (k *Kernel) HexID(nBytes int) string {
	buf := make([]byte, nBytes)
	_, _ = k.Read(buf)
	return hex.EncodeToString(buf)
}

// Pick returns a uniformly chosen element of items. items must be non-empty.
func Pick[T any](k *Kernel, items []T) T {
	return items[k.rng.Intn(len(items))]
}

// WeightedChoice picks an item with probability proportional to its weight.
// Non-positive weights are never chosen unless all weights are non-positive,
// in which case the pick is uniform.
func WeightedChoice[T any](k *Kernel, items []T, weights []float64) (T, error) {
	var zero T
	if len(items) == 0 || len(items) != len(weights) {
		return zero, ErrWeightsMismatch
	}
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		return items[k.rng.Intn(len(items))], nil
	}
	target := k.rng.Float64() * total
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		target -= w
		if target < 0 {
			return items[i], nil
		}
	}
	// Floating point residue: fall back to the last positive weight.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return items[i], nil
		}
	}
	return zero, ErrWeightsMismatch
}

// Shuffle permutes items in place with Fisher–Yates.
func Shuffle[T any](k *Kernel, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := k.rng.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

func (k *Kernel) nonZero() float64 {
	u := k.rng.Float64()
	if u < epsilon {
		return epsilon
	}
	return u
}
