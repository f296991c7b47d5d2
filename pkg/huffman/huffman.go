// Package huffman implements the multi-table Huffman stage of bzip2.
//
// A block's symbol stream is cut into 50-symbol groups. Each group is coded with one of
// 2 to 6 tables, chosen by a selector. The tables and selectors are optimised together
// over a few refinement passes, and code lengths are limited to 17 bits.
package huffman

import "errors"

const (
	// GroupSize is the number of symbols coded with one selector.
	GroupSize = 50

	// MinTables and MaxTables bound the number of tables per block.
	MinTables = 2
	MaxTables = 6

	// MaxCodeLength is the longest code the encoder produces and the decoder accepts.
	MaxCodeLength = 17

	// DefaultIterations is the number of table refinement passes.
	DefaultIterations = 4

	// MaxAlphabetSize is 256 MTF ranks plus RUNA, RUNB and EOB, less the rank-0 symbol.
	MaxAlphabetSize = 258

	lesserCost  = 0
	greaterCost = 15
)

var (
	// ErrEmptyStream is returned when there are no symbols to encode
	ErrEmptyStream = errors.New("huffman: empty symbol stream")
	// ErrMissingEOB is returned when the stream does not end with the EOB symbol
	ErrMissingEOB = errors.New("huffman: stream does not end with EOB")
	// ErrAlphabet is returned when frequencies and EOB disagree
	ErrAlphabet = errors.New("huffman: alphabet size mismatch")
	// ErrLengthLimit is returned if a built code exceeds MaxCodeLength
	ErrLengthLimit = errors.New("huffman: code length limit violated")

	// ErrTableCount is returned for a table count outside 2..6
	ErrTableCount = errors.New("huffman: invalid number of tables")
	// ErrSelectorCount is returned for a selector count of zero or above the block maximum
	ErrSelectorCount = errors.New("huffman: invalid number of selectors")
	// ErrSelector is returned for a selector naming a table that does not exist
	ErrSelector = errors.New("huffman: selector out of range")
	// ErrCodeLength is returned for a code length outside 1..17
	ErrCodeLength = errors.New("huffman: invalid code length")
	// ErrInvalidCode is returned when the input matches no code
	ErrInvalidCode = errors.New("huffman: invalid code")
	// ErrSelectorsExhausted is returned when symbols continue past the last selector
	ErrSelectorsExhausted = errors.New("huffman: symbol stream overruns selectors")
)

// TableCount returns the number of tables used for a stream of n symbols.
func TableCount(n int) int {
	switch {
	case n < 200:
		return 2
	case n < 600:
		return 3
	case n < 1200:
		return 4
	case n < 2400:
		return 5
	default:
		return 6
	}
}

// SelectorCount returns the number of selectors for a stream of n symbols.
func SelectorCount(n int) int {
	return (n + GroupSize - 1) / GroupSize
}
