// Package sample decides which user and provider each transaction references.
package sample

import (
	"math/rand/v2"

	"pkg.jsn.cam/datagen/pkg/datagen"
)

// Sampler draws foreign key indexes from a private random source.
type Sampler struct {
	rand   *rand.Rand
	skewed bool
}

// New returns a sampler drawing from r. When skewed is set user selection
// favours low indexes (u^3 scaling), so early users become hot keys.
func New(r *rand.Rand, skewed bool) *Sampler {
	return &Sampler{rand: r, skewed: skewed}
}

// NewSeeded is New with a PCG source derived from seed.
func NewSeeded(seed uint64, skewed bool) *Sampler {
	return New(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), skewed)
}

// Skewed reports whether user selection is skewed.
func (s *Sampler) Skewed() bool {
	return s.skewed
}

// UserIndex returns an index in [0, n) under the sampler's policy.
func (s *Sampler) UserIndex(n int) (int, error) {
	if n <= 0 {
		return 0, datagen.ErrEmptyPopulation
	}
	if !s.skewed {
		return s.rand.IntN(n), nil
	}
	return skewedIndex(s.rand.Float64(), n), nil
}

// ProviderIndex returns a uniform index in [0, n); skew never applies.
func (s *Sampler) ProviderIndex(n int) (int, error) {
	if n <= 0 {
		return 0, datagen.ErrEmptyPopulation
	}
	return s.rand.IntN(n), nil
}

func skewedIndex(u float64, n int) int {
	idx := int(u * u * u * float64(n))
	if idx < 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}
