// Package augment implements the causality-preserving augmentation engine:
// monotone warp-map construction, causal time warp, value jitter,
// band-masking, channel dropout, point drop, and seeded preset sampling.
package augment

import (
	"math/rand"

	"gonum.org/v1/gonum/mathext/prng"
)

// mt19937Source wraps gonum's MT19937 to implement math/rand.Source64,
// the same wrapping shape the teacher uses to plug a deterministic PRNG
// into library code that expects the standard rand.Source interface.
type mt19937Source struct {
	mt *prng.MT19937
}

// NewSource builds a seeded, deterministic rand.Rand backed by MT19937.
func NewSource(seed int64) *rand.Rand {
	s := &mt19937Source{mt: prng.NewMT19937()}
	s.Seed(seed)
	return rand.New(s)
}

func (s *mt19937Source) Int63() int64 {
	return int64(s.mt.Uint64() >> 1)
}

func (s *mt19937Source) Seed(seed int64) {
	s.mt.Seed(uint64(seed))
}

func (s *mt19937Source) Uint64() uint64 {
	return s.mt.Uint64()
}
