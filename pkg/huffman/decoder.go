package huffman

import (
	"fmt"
	"sort"

	"github.com/KevoDB/kbz/pkg/bitstream"
)

// level describes the codes of one length: after reading bits more bits, codes in
// [first, first+count) decode to perm[offset+code-first].
type level struct {
	bits   uint
	first  uint32
	count  uint32
	offset uint32
}

// table is a canonical code prepared for decoding.
type table struct {
	levels []level
	perm   []uint16
}

func newTable(lengths []uint8) *table {
	perm := make([]uint16, len(lengths))
	for i := range perm {
		perm[i] = uint16(i)
	}
	sort.SliceStable(perm, func(a, b int) bool {
		return lengths[perm[a]] < lengths[perm[b]]
	})

	t := &table{perm: perm}
	var code uint32
	prevLen := uint8(0)
	for i := 0; i < len(perm); {
		l := lengths[perm[i]]
		j := i
		for j < len(perm) && lengths[perm[j]] == l {
			j++
		}
		code <<= l - prevLen
		t.levels = append(t.levels, level{
			bits:   uint(l - prevLen),
			first:  code,
			count:  uint32(j - i),
			offset: uint32(i),
		})
		code += uint32(j - i)
		prevLen = l
		i = j
	}
	return t
}

func (t *table) decode(r *bitstream.Reader) (uint16, error) {
	var code uint32
	for _, lv := range t.levels {
		v, err := r.ReadBits(lv.bits)
		if err != nil {
			return 0, err
		}
		code = code<<lv.bits | v
		if code-lv.first < lv.count {
			return t.perm[lv.offset+code-lv.first], nil
		}
	}
	return 0, ErrInvalidCode
}

// Decoder decodes the symbol stream of one block.
type Decoder struct {
	// Lengths holds the code lengths read for each table.
	Lengths [][]uint8
	// Selectors holds the table used by each 50-symbol group.
	Selectors []uint8

	tables []*table
}

// ReadTables reads the table count, selectors and code lengths written by
// Encoding.WriteTo. alphaSize is EOB+1 and maxSelectors the largest selector count a
// block of the stream's size can need.
func ReadTables(r *bitstream.Reader, alphaSize, maxSelectors int) (*Decoder, error) {
	if alphaSize < 3 || alphaSize > MaxAlphabetSize {
		return nil, fmt.Errorf("%w: %d symbols", ErrAlphabet, alphaSize)
	}

	n, err := r.ReadBits(3)
	if err != nil {
		return nil, err
	}
	nGroups := int(n)
	if nGroups < MinTables || nGroups > MaxTables {
		return nil, fmt.Errorf("%w: %d", ErrTableCount, nGroups)
	}

	n, err = r.ReadBits(15)
	if err != nil {
		return nil, err
	}
	nSelectors := int(n)
	if nSelectors == 0 || nSelectors > maxSelectors {
		return nil, fmt.Errorf("%w: %d (maximum %d)", ErrSelectorCount, nSelectors, maxSelectors)
	}

	order := make([]uint8, nGroups)
	for i := range order {
		order[i] = uint8(i)
	}
	selectors := make([]uint8, nSelectors)
	for i := range selectors {
		j := 0
		for {
			bit, err := r.ReadBit()
			if err != nil {
				return nil, err
			}
			if bit == 0 {
				break
			}
			j++
			if j >= nGroups {
				return nil, fmt.Errorf("%w: rank %d with %d tables", ErrSelector, j, nGroups)
			}
		}
		s := order[j]
		copy(order[1:j+1], order[:j])
		order[0] = s
		selectors[i] = s
	}

	d := &Decoder{
		Lengths:   make([][]uint8, nGroups),
		Selectors: selectors,
		tables:    make([]*table, nGroups),
	}
	for t := 0; t < nGroups; t++ {
		origin, err := r.ReadBits(5)
		if err != nil {
			return nil, err
		}
		length := int(origin)
		lengths := make([]uint8, alphaSize)
		for sym := range lengths {
			for {
				if length < 1 || length > MaxCodeLength {
					return nil, fmt.Errorf("%w: %d for symbol %d of table %d", ErrCodeLength, length, sym, t)
				}
				more, err := r.ReadBit()
				if err != nil {
					return nil, err
				}
				if more == 0 {
					break
				}
				down, err := r.ReadBit()
				if err != nil {
					return nil, err
				}
				if down == 0 {
					length++
				} else {
					length--
				}
			}
			lengths[sym] = uint8(length)
		}
		d.Lengths[t] = lengths
		d.tables[t] = newTable(lengths)
	}

	return d, nil
}

// Decode reads symbols until eob and returns them without the terminator.
func (d *Decoder) Decode(r *bitstream.Reader, eob uint16) ([]uint16, error) {
	out := make([]uint16, 0, len(d.Selectors)*GroupSize)
	for _, sel := range d.Selectors {
		t := d.tables[sel]
		for k := 0; k < GroupSize; k++ {
			sym, err := t.decode(r)
			if err != nil {
				return nil, err
			}
			if sym == eob {
				return out, nil
			}
			out = append(out, sym)
		}
	}
	return nil, ErrSelectorsExhausted
}
