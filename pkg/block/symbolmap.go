package block

import "github.com/KevoDB/kbz/pkg/bitstream"

// writeSymbolMap writes the two-level map of used byte values: a 16-bit word marking
// which 16-value ranges are present, then one 16-bit word per present range. It
// returns the number of values in use.
func writeSymbolMap(w *bitstream.Writer, used *[256]bool) int {
	var ranges uint16
	var words [16]uint16
	n := 0
	for i := 0; i < 16; i++ {
		for j := 0; j < 16; j++ {
			if used[i*16+j] {
				ranges |= 0x8000 >> i
				words[i] |= 0x8000 >> j
				n++
			}
		}
	}

	w.WriteUint16(ranges)
	for i := 0; i < 16; i++ {
		if ranges&(0x8000>>i) != 0 {
			w.WriteUint16(words[i])
		}
	}
	return n
}

func readSymbolMap(r *bitstream.Reader) ([256]bool, error) {
	var used [256]bool
	ranges, err := r.ReadUint16()
	if err != nil {
		return used, err
	}

	n := 0
	for i := 0; i < 16; i++ {
		if ranges&(0x8000>>i) == 0 {
			continue
		}
		word, err := r.ReadUint16()
		if err != nil {
			return used, err
		}
		for j := 0; j < 16; j++ {
			if word&(0x8000>>j) != 0 {
				used[i*16+j] = true
				n++
			}
		}
	}
	if n == 0 {
		return used, ErrSymbolMap
	}
	return used, nil
}
