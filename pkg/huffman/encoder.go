package huffman

import (
	"fmt"

	"github.com/KevoDB/kbz/pkg/bitstream"
)

// Encoding is the set of tables and selectors chosen for one block, together with the
// symbols they code.
type Encoding struct {
	// Lengths holds the code length of every symbol, per table.
	Lengths [][]uint8
	// Selectors holds the table used by each 50-symbol group.
	Selectors []uint8

	codes   [][]uint32
	symbols []uint16
}

// Encode chooses tables and selectors for symbols, which must end with eob and be
// described by freqs (one count per symbol 0..eob). iterations below one selects
// DefaultIterations.
func Encode(symbols []uint16, freqs []uint32, eob uint16, iterations int) (*Encoding, error) {
	if len(symbols) == 0 {
		return nil, ErrEmptyStream
	}
	if symbols[len(symbols)-1] != eob {
		return nil, ErrMissingEOB
	}
	alphaSize := int(eob) + 1
	if len(freqs) != alphaSize {
		return nil, fmt.Errorf("%w: %d frequencies for EOB %d", ErrAlphabet, len(freqs), eob)
	}
	if iterations < 1 {
		iterations = DefaultIterations
	}

	nGroups := TableCount(len(symbols))
	lengths := initialTables(freqs, nGroups)

	selectors := make([]uint8, SelectorCount(len(symbols)))
	tally := make([][]uint32, nGroups)
	for t := range tally {
		tally[t] = make([]uint32, alphaSize)
	}
	cost := make([]int, nGroups)

	for iter := 0; iter < iterations; iter++ {
		for t := range tally {
			clear(tally[t])
		}

		for sel, gs := 0, 0; gs < len(symbols); sel, gs = sel+1, gs+GroupSize {
			group := symbols[gs:min(gs+GroupSize, len(symbols))]

			clear(cost)
			for _, sym := range group {
				if int(sym) >= alphaSize {
					return nil, fmt.Errorf("%w: symbol %d above EOB %d", ErrAlphabet, sym, eob)
				}
				for t := range cost {
					cost[t] += int(lengths[t][sym])
				}
			}

			// First minimum wins
			best := 0
			for t := 1; t < nGroups; t++ {
				if cost[t] < cost[best] {
					best = t
				}
			}
			selectors[sel] = uint8(best)

			for _, sym := range group {
				tally[best][sym]++
			}
		}

		for t := range lengths {
			lengths[t] = CodeLengths(tally[t], MaxCodeLength)
		}
	}

	codes := make([][]uint32, nGroups)
	for t, tl := range lengths {
		for sym, l := range tl {
			if l < 1 || l > MaxCodeLength {
				return nil, fmt.Errorf("%w: table %d symbol %d has length %d", ErrLengthLimit, t, sym, l)
			}
		}
		codes[t] = CanonicalCodes(tl)
	}

	return &Encoding{
		Lengths:   lengths,
		Selectors: selectors,
		codes:     codes,
		symbols:   symbols,
	}, nil
}

// initialTables splits the alphabet into nGroups ranges of roughly equal total
// frequency. A symbol costs nothing in the table owning its range and 15 elsewhere.
func initialTables(freqs []uint32, nGroups int) [][]uint8 {
	alphaSize := len(freqs)
	lengths := make([][]uint8, nGroups)
	for t := range lengths {
		lengths[t] = make([]uint8, alphaSize)
	}

	remaining := 0
	for _, f := range freqs {
		remaining += int(f)
	}

	gs := 0
	for part := nGroups; part > 0; part-- {
		target := remaining / part
		ge := gs - 1
		acc := 0
		for acc < target && ge < alphaSize-1 {
			ge++
			acc += int(freqs[ge])
		}

		// Alternate boundaries give their last symbol back to the next range
		if ge > gs && part != nGroups && part != 1 && (nGroups-part)%2 == 1 {
			acc -= int(freqs[ge])
			ge--
		}

		for v := range lengths[part-1] {
			if v >= gs && v <= ge {
				lengths[part-1][v] = lesserCost
			} else {
				lengths[part-1][v] = greaterCost
			}
		}

		gs = ge + 1
		remaining -= acc
	}
	return lengths
}

// Tables returns the number of tables in use.
func (e *Encoding) Tables() int {
	return len(e.Lengths)
}

// Codes returns the canonical codes of table t.
func (e *Encoding) Codes(t int) []uint32 {
	return e.codes[t]
}

// WriteTo writes the table count, selectors, code length tables and the coded symbols.
func (e *Encoding) WriteTo(w *bitstream.Writer) error {
	nGroups := len(e.Lengths)
	w.WriteBits(uint32(nGroups), 3)
	w.WriteBits(uint32(len(e.Selectors)), 15)

	// Selectors are move-to-front coded, then written in unary
	order := make([]uint8, nGroups)
	for i := range order {
		order[i] = uint8(i)
	}
	for _, s := range e.Selectors {
		j := 0
		for order[j] != s {
			j++
		}
		copy(order[1:j+1], order[:j])
		order[0] = s

		for k := 0; k < j; k++ {
			w.WriteBits(1, 1)
		}
		w.WriteBits(0, 1)
	}

	// Lengths are coded as deltas from a 5-bit origin: 10 is +1, 11 is -1, 0 ends
	for _, tl := range e.Lengths {
		curr := tl[0]
		w.WriteBits(uint32(curr), 5)
		for _, l := range tl {
			for curr < l {
				w.WriteBits(2, 2)
				curr++
			}
			for curr > l {
				w.WriteBits(3, 2)
				curr--
			}
			w.WriteBits(0, 1)
		}
	}

	for sel, gs := 0, 0; gs < len(e.symbols); sel, gs = sel+1, gs+GroupSize {
		t := e.Selectors[sel]
		lengths, codes := e.Lengths[t], e.codes[t]
		for _, sym := range e.symbols[gs:min(gs+GroupSize, len(e.symbols))] {
			w.WriteBits(codes[sym], uint(lengths[sym]))
		}
	}

	return w.Err()
}
