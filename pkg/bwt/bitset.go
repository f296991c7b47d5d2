package bwt

import "math/bits"

// bitset is a fixed-size set of positions backed by 64-bit words.
type bitset struct {
	words []uint64
}

func newBitset(n int) *bitset {
	return &bitset{words: make([]uint64, (n+63)/64)}
}

func (b *bitset) set(i int32) {
	b.words[i>>6] |= 1 << (uint(i) & 63)
}

func (b *bitset) clear(i int32) {
	b.words[i>>6] &^= 1 << (uint(i) & 63)
}

func (b *bitset) test(i int32) bool {
	return b.words[i>>6]&(1<<(uint(i)&63)) != 0
}

// nextSet returns the first set position at or after i. The caller guarantees that
// one exists.
func (b *bitset) nextSet(i int32) int32 {
	w := i >> 6
	word := b.words[w] & (^uint64(0) << (uint(i) & 63))
	for word == 0 {
		w++
		word = b.words[w]
	}
	return w<<6 + int32(bits.TrailingZeros64(word))
}

// nextClear returns the first clear position at or after i. The caller guarantees
// that one exists.
func (b *bitset) nextClear(i int32) int32 {
	w := i >> 6
	word := ^b.words[w] & (^uint64(0) << (uint(i) & 63))
	for word == 0 {
		w++
		word = ^b.words[w]
	}
	return w<<6 + int32(bits.TrailingZeros64(word))
}
