// Package shard maps keys onto a fixed set of independently locked
// partitions. It is shared by stripedmap and lrucache.
package shard

import (
	"hash/maphash"
	"math/bits"

	"github.com/jzx17/syncore/pkg/types"
)

// DefaultCount is the default number of shards
const DefaultCount = 16

// Hasher hashes a key. It must be deterministic for the lifetime of the
// structure that uses it.
type Hasher[K comparable] func(key K) uint64

// NewMaphashHasher returns a Hasher backed by hash/maphash with a fresh
// random seed.
func NewMaphashHasher[K comparable]() Hasher[K] {
	seed := maphash.MakeSeed()
	return func(key K) uint64 {
		return maphash.Comparable(seed, key)
	}
}

// ValidateCount checks a shard count for the named component
func ValidateCount(component string, n int) error {
	if n <= 0 {
		return types.NewConfigError(component, "ShardCount", n)
	}
	return nil
}

// Selector picks the shard for a key: hash(key) mod N. Power-of-two counts
// use a mask instead of the division.
type Selector[K comparable] struct {
	hash Hasher[K]
	n    uint64
	mask uint64
	pow2 bool
}

// NewSelector creates a selector over n shards. A nil hasher selects
// NewMaphashHasher.
func NewSelector[K comparable](component string, n int, hash Hasher[K]) (*Selector[K], error) {
	if err := ValidateCount(component, n); err != nil {
		return nil, err
	}
	if hash == nil {
		hash = NewMaphashHasher[K]()
	}
	return &Selector[K]{
		hash: hash,
		n:    uint64(n),
		mask: uint64(n) - 1,
		pow2: bits.OnesCount(uint(n)) == 1,
	}, nil
}

// Index returns the shard index of key in [0, Count())
func (s *Selector[K]) Index(key K) int {
	h := s.hash(key)
	if s.pow2 {
		return int(h & s.mask)
	}
	return int(h % s.n)
}

// Count returns the number of shards
func (s *Selector[K]) Count() int {
	return int(s.n)
}
