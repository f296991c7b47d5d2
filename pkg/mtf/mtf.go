// Package mtf implements the move-to-front transform combined with the RUNA/RUNB
// zero-run coding (RLE2) that turns BWT output into the Huffman coder's symbol alphabet.
//
// Symbols 0 (RUNA) and 1 (RUNB) are the digits of a bijective base-2 run length of
// rank-0 repeats, symbols 2..n stand for MTF ranks 1..n-1, and n+1 (EOB) ends the block,
// where n is the number of distinct bytes in the block.
package mtf

import (
	"errors"
	"fmt"
)

const (
	// RunA is the run digit worth one unit at its position.
	RunA = 0
	// RunB is the run digit worth two units at its position.
	RunB = 1

	// maxRunShift bounds the number of run digits a decoder accepts.
	maxRunShift = 24
)

var (
	// ErrRunOverflow is returned when a decoded run exceeds the output limit
	ErrRunOverflow = errors.New("mtf: run length exceeds block capacity")
	// ErrBadSymbol is returned for a symbol outside the alphabet
	ErrBadSymbol = errors.New("mtf: symbol out of range")
	// ErrOutputLimit is returned when decoding produces more bytes than allowed
	ErrOutputLimit = errors.New("mtf: decoded block exceeds capacity")
	// ErrEmptyAlphabet is returned when no symbols are in use
	ErrEmptyAlphabet = errors.New("mtf: no symbols in use")
)

// InUse returns the set of byte values occurring in data.
func InUse(data []byte) [256]bool {
	var used [256]bool
	for _, b := range data {
		used[b] = true
	}
	return used
}

// Alphabet returns the used byte values in ascending order.
func Alphabet(used *[256]bool) []byte {
	seq := make([]byte, 0, 256)
	for i, ok := range used {
		if ok {
			seq = append(seq, byte(i))
		}
	}
	return seq
}

// Encoded is the output of Encode.
type Encoded struct {
	// Symbols is the symbol stream, terminated by EOB.
	Symbols []uint16
	// Freqs counts each symbol in 0..EOB.
	Freqs []uint32
	// EOB is the end-of-block symbol, the largest in the alphabet.
	EOB uint16
}

// Encode transforms BWT output into the RUNA/RUNB/MTF symbol stream. used must
// contain every byte of data.
func Encode(data []byte, used *[256]bool) (*Encoded, error) {
	var unseqToSeq [256]byte
	nInUse := 0
	for i, ok := range used {
		if ok {
			unseqToSeq[i] = byte(nInUse)
			nInUse++
		}
	}
	if nInUse == 0 {
		return nil, ErrEmptyAlphabet
	}

	eob := uint16(nInUse + 1)
	enc := &Encoded{
		Symbols: make([]uint16, 0, len(data)/2+2),
		Freqs:   make([]uint32, eob+1),
		EOB:     eob,
	}

	order := make([]byte, nInUse)
	for i := range order {
		order[i] = byte(i)
	}

	zeros := 0
	for _, b := range data {
		if !used[b] {
			return nil, fmt.Errorf("%w: byte %#02x not in the symbol map", ErrBadSymbol, b)
		}
		ll := unseqToSeq[b]
		if order[0] == ll {
			zeros++
			continue
		}
		if zeros > 0 {
			enc.emitRun(zeros)
			zeros = 0
		}

		// Shift the list down until ll is found, then move it to the front
		prev := order[0]
		j := 1
		for ; order[j] != ll; j++ {
			order[j], prev = prev, order[j]
		}
		order[j] = prev
		order[0] = ll

		enc.Symbols = append(enc.Symbols, uint16(j+1))
		enc.Freqs[j+1]++
	}
	if zeros > 0 {
		enc.emitRun(zeros)
	}

	enc.Symbols = append(enc.Symbols, eob)
	enc.Freqs[eob]++
	return enc, nil
}

// emitRun writes a run of n rank-0 symbols as bijective base-2 digits, least
// significant first.
func (e *Encoded) emitRun(n int) {
	n--
	for {
		if n&1 == 1 {
			e.Symbols = append(e.Symbols, RunB)
			e.Freqs[RunB]++
		} else {
			e.Symbols = append(e.Symbols, RunA)
			e.Freqs[RunA]++
		}
		if n < 2 {
			return
		}
		n = (n - 2) / 2
	}
}

// Decode reverses Encode. symbols must not include the EOB symbol; alphabet lists the
// used byte values in ascending order. At most limit bytes are produced.
func Decode(symbols []uint16, alphabet []byte, limit int) ([]byte, error) {
	if len(alphabet) == 0 {
		return nil, ErrEmptyAlphabet
	}
	maxSym := uint16(len(alphabet))

	order := make([]byte, len(alphabet))
	copy(order, alphabet)

	out := make([]byte, 0, min(limit, len(symbols)*2))
	repeat, shift := 0, 0

	flush := func() error {
		if repeat == 0 {
			return nil
		}
		if len(out)+repeat > limit {
			return ErrRunOverflow
		}
		b := order[0]
		for i := 0; i < repeat; i++ {
			out = append(out, b)
		}
		repeat, shift = 0, 0
		return nil
	}

	for _, sym := range symbols {
		if sym == RunA || sym == RunB {
			if shift > maxRunShift {
				return nil, ErrRunOverflow
			}
			repeat += int(sym+1) << shift
			shift++
			if repeat > limit {
				return nil, ErrRunOverflow
			}
			continue
		}
		if err := flush(); err != nil {
			return nil, err
		}
		if sym > maxSym {
			return nil, fmt.Errorf("%w: %d with %d symbols in use", ErrBadSymbol, sym, len(alphabet))
		}

		idx := int(sym - 1)
		b := order[idx]
		copy(order[1:idx+1], order[:idx])
		order[0] = b

		if len(out) >= limit {
			return nil, ErrOutputLimit
		}
		out = append(out, b)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}
