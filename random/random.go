// Package random implements the explicit seeded random source threaded through
// the partitioner, the batch source and model initialization.
package random

import "hash/fnv"
import "math/rand"

import "github.com/neurlang/finetune/hash"

// Source is a deterministic random stream. It is not safe for concurrent use,
// derive one child stream per goroutine instead.
type Source struct {
	seed int64
	r    *rand.Rand
}

// New creates a source seeded with seed
func New(seed int64) *Source {
	return &Source{
		seed: seed,
		r:    rand.New(rand.NewSource(seed)),
	}
}

// Seed returns the seed the source was created with
func (s *Source) Seed() int64 {
	return s.seed
}

// Derive returns an independent child stream named stream. The same parent
// seed and stream name always produce the same child, regardless of how much
// the parent has been consumed.
func (s *Source) Derive(stream string) *Source {
	h := fnv.New64a()
	h.Write([]byte(stream))
	sum := h.Sum64()

	lo := hash.Hash(uint32(sum), uint32(s.seed), 0xffffffff)
	hi := hash.Hash(uint32(sum>>32), uint32(s.seed>>32), 0xffffffff)

	return New(s.seed ^ int64(uint64(hi)<<32|uint64(lo)))
}

// Perm returns a pseudo-random permutation of [0, n)
func (s *Source) Perm(n int) []int {
	return s.r.Perm(n)
}

// Shuffle shuffles n elements using swap
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.r.Shuffle(n, swap)
}

// Intn returns a value in [0, n)
func (s *Source) Intn(n int) int {
	return s.r.Intn(n)
}

// Float64 returns a value in [0, 1)
func (s *Source) Float64() float64 {
	return s.r.Float64()
}

// NormFloat64 returns a standard normal value
func (s *Source) NormFloat64() float64 {
	return s.r.NormFloat64()
}
