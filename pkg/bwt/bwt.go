// Package bwt computes the Burrows-Wheeler transform of a block by sorting its rotations.
//
// Blocks shorter than 10000 bytes are sorted with a prefix-doubling sort. Larger blocks
// first try a budgeted comparison sort; if that runs out of budget, which happens on
// highly repetitive data, its partial result is thrown away and the block is sorted
// again with the doubling sort. Both paths produce identical output.
package bwt

import (
	"errors"
	"fmt"
)

const (
	// FallbackThreshold is the block length below which the doubling sort is always used.
	FallbackThreshold = 10000

	// DefaultWorkFactor matches the bzip2 default.
	DefaultWorkFactor = 30

	// MaxWorkFactor is the largest work factor that changes the budget.
	MaxWorkFactor = 100
)

// SortPath records which algorithm produced a result.
type SortPath int

const (
	// PathFallback is the prefix-doubling sort.
	PathFallback SortPath = iota
	// PathPrimary is the budgeted comparison sort.
	PathPrimary
)

// String returns the name of the sort path.
func (p SortPath) String() string {
	switch p {
	case PathFallback:
		return "fallback"
	case PathPrimary:
		return "primary"
	default:
		return fmt.Sprintf("SortPath(%d)", int(p))
	}
}

// Result is the output of Sort.
type Result struct {
	// Key is the row of the sorted rotation matrix holding the original block.
	Key uint32
	// BWT is the last column of the sorted rotation matrix.
	BWT []byte
	// Path is the algorithm that produced the result.
	Path SortPath
	// BudgetExhausted is set when the primary sort gave up and the fallback ran.
	BudgetExhausted bool
}

// ErrKeyOutOfRange is returned by Inverse for a key that does not index the block.
var ErrKeyOutOfRange = errors.New("bwt: key out of range")

// Sort computes the transform of block. workFactor scales the comparison budget of the
// primary sort; values are clamped to 1..100 and anything at or below 3 always uses
// the fallback.
//
// Sort panics with *InternalError if a sorting invariant is violated.
func Sort(block []byte, workFactor int) Result {
	n := len(block)
	if n == 0 {
		return Result{BWT: []byte{}, Path: PathFallback}
	}

	if n < FallbackThreshold {
		return extract(block, fallbackSort(block), PathFallback)
	}

	wf := min(max(workFactor, 1), MaxWorkFactor)
	ms := newMainSorter(block, n*((wf-1)/3))
	err := ms.sort()
	switch {
	case err == nil:
		return extract(block, ms.ptr, PathPrimary)
	case errors.Is(err, errBudgetExhausted):
		// Start over from the original bytes; nothing from the abandoned attempt is reused
		res := extract(block, fallbackSort(block), PathFallback)
		res.BudgetExhausted = true
		return res
	default:
		panic(err)
	}
}

// extract builds the last column and key from the sorted rotation starts.
func extract(block []byte, ptr []int32, path SortPath) Result {
	n := len(block)
	out := make([]byte, n)
	key := -1
	for i, p := range ptr {
		if p == 0 {
			key = i
			out[i] = block[n-1]
		} else {
			out[i] = block[p-1]
		}
	}
	if key < 0 {
		raise(errCodeNoOrigin, "no rotation starts at offset 0")
	}

	return Result{
		Key:  uint32(canonicalKey(block, ptr, key)),
		BWT:  out,
		Path: path,
	}
}

// canonicalKey moves key to the first of the rows holding a rotation equal to the
// original block. Such rows only exist for periodic blocks; they are adjacent, and
// their order is otherwise an artifact of the sort used.
func canonicalKey(block []byte, ptr []int32, key int) int {
	if key == 0 || !rotationEqual(block, ptr[key-1], 0) {
		return key
	}
	p := int32(period(block))
	for key > 0 && ptr[key-1]%p == 0 {
		key--
	}
	return key
}

// rotationEqual compares the rotations starting at a and b.
func rotationEqual(block []byte, a, b int32) bool {
	n := int32(len(block))
	for k := int32(0); k < n; k++ {
		if block[a] != block[b] {
			return false
		}
		if a++; a == n {
			a = 0
		}
		if b++; b == n {
			b = 0
		}
	}
	return true
}

// period returns the smallest p dividing len(block) such that the block is a
// repetition of its first p bytes.
func period(block []byte) int {
	n := len(block)
	fail := make([]int32, n+1)
	fail[0] = -1
	k := int32(-1)
	for i := 0; i < n; i++ {
		for k >= 0 && block[k] != block[i] {
			k = fail[k]
		}
		k++
		fail[i+1] = k
	}
	p := n - int(fail[n])
	if n%p != 0 {
		return n
	}
	return p
}

// Inverse reconstructs the block from its transform and key.
func Inverse(bwt []byte, key uint32) ([]byte, error) {
	n := len(bwt)
	if n == 0 {
		if key != 0 {
			return nil, fmt.Errorf("%w: %d for an empty block", ErrKeyOutOfRange, key)
		}
		return []byte{}, nil
	}
	if int(key) >= n {
		return nil, fmt.Errorf("%w: %d for a block of %d bytes", ErrKeyOutOfRange, key, n)
	}

	// tt[i] holds the byte in the low 8 bits and the next row in the upper 24 bits
	tt := make([]uint32, n)
	var c [256]uint32
	for i, b := range bwt {
		tt[i] = uint32(b)
		c[b]++
	}
	var sum uint32
	for i := range c {
		sum, c[i] = sum+c[i], sum
	}
	for i, b := range bwt {
		tt[c[b]] |= uint32(i) << 8
		c[b]++
	}

	out := make([]byte, n)
	pos := tt[key] >> 8
	for i := range out {
		v := tt[pos]
		out[i] = byte(v)
		pos = v >> 8
	}
	return out, nil
}
