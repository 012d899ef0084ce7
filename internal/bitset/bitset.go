// Package bitset provides a fixed-capacity bitmap used to track dirty
// indices between incremental rescores.
package bitset

import "math/bits"

// Set is a bitmap over the integers [0, n). The zero value is unusable;
// call New.
type Set struct {
	words []uint64
	n     int
}

// New returns an empty set with capacity n.
func New(n int) *Set {
	return &Set{words: make([]uint64, (n+63)/64), n: n}
}

// Add marks index i as set. Out-of-range indices panic.
func (s *Set) Add(i int) {
	s.words[i>>6] |= 1 << (uint(i) & 63)
}

// Has reports whether index i is set.
func (s *Set) Has(i int) bool {
	return s.words[i>>6]&(1<<(uint(i)&63)) != 0
}

// Clear resets the set to empty without releasing capacity.
func (s *Set) Clear() {
	for i := range s.words {
		s.words[i] = 0
	}
}

// Empty reports whether no index is set.
func (s *Set) Empty() bool {
	for _, w := range s.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Count returns the number of set indices.
func (s *Set) Count() int {
	c := 0
	for _, w := range s.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// ForEach calls fn for every set index in ascending order.
func (s *Set) ForEach(fn func(i int)) {
	for wi, w := range s.words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			fn(wi<<6 + b)
			w &^= 1 << uint(b)
		}
	}
}

// Union adds every index set in o. The two sets must share a capacity.
func (s *Set) Union(o *Set) {
	for i := range s.words {
		s.words[i] |= o.words[i]
	}
}
