// Package block encodes and decodes a single bzip2 block: the block header, the symbol
// map and the Huffman coded BWT/MTF payload.
package block

import (
	"errors"
	"fmt"
	"time"

	"github.com/KevoDB/kbz/pkg/bitstream"
	"github.com/KevoDB/kbz/pkg/bwt"
	"github.com/KevoDB/kbz/pkg/crc"
	"github.com/KevoDB/kbz/pkg/huffman"
	"github.com/KevoDB/kbz/pkg/mtf"
	"github.com/KevoDB/kbz/pkg/rle"
)

const (
	// Magic starts every block (the BCD digits of pi).
	Magic uint64 = 0x314159265359

	// UnitSize is the block capacity per block-size step.
	UnitSize = 100000

	// MinFactor and MaxFactor bound the block-size digit of a stream header.
	MinFactor = 1
	MaxFactor = 9

	// Headroom is kept free below the capacity while filling a block, so the final
	// flush of a pending RLE1 run always fits.
	Headroom = 19
)

var (
	// ErrFactor is returned for a block-size factor outside 1..9
	ErrFactor = errors.New("block: block size factor out of range")
	// ErrEmptyBlock is returned when asked to encode a block without data
	ErrEmptyBlock = errors.New("block: empty block")
	// ErrTooLarge is returned when block data exceeds the capacity
	ErrTooLarge = errors.New("block: data exceeds block capacity")
	// ErrRandomized is returned for blocks with the legacy randomized bit set
	ErrRandomized = errors.New("block: randomized blocks are not supported")
	// ErrKeyRange is returned when the BWT key does not fit the block
	ErrKeyRange = errors.New("block: BWT key out of range")
	// ErrSymbolMap is returned when the symbol map names no byte values
	ErrSymbolMap = errors.New("block: empty symbol map")
)

// Capacity returns the largest block, in RLE1 bytes, for a block-size factor.
func Capacity(factor int) int {
	return factor * UnitSize
}

// FillLimit returns the RLE1 length at which the block builder stops adding input.
func FillLimit(factor int) int {
	return Capacity(factor) - Headroom
}

// ValidFactor reports whether factor is a legal block-size digit.
func ValidFactor(factor int) bool {
	return factor >= MinFactor && factor <= MaxFactor
}

// Block is one unit of compression work.
type Block struct {
	// Seq is the block's position in the stream, starting at zero.
	Seq uint64
	// Data is the RLE1 encoding of the raw bytes.
	Data []byte
	// CRC is the checksum of the raw bytes.
	CRC uint32
	// RawOffset is the offset of the first raw byte in the uncompressed stream.
	RawOffset int64
	// RawSize is the number of raw bytes the block represents.
	RawSize int64
}

// Options tune the encoder.
type Options struct {
	// Factor is the block-size digit of the stream the block is written to.
	// Zero means MaxFactor.
	Factor int
	// WorkFactor scales the primary sort's budget.
	WorkFactor int
	// Iterations is the number of Huffman refinement passes.
	Iterations int
	// Parallelism bounds the goroutines used for frequency counting.
	Parallelism int
}

// Info describes an encoded block.
type Info struct {
	Seq             uint64
	CRC             uint32
	Key             uint32
	Path            bwt.SortPath
	BudgetExhausted bool
	SortDuration    time.Duration
	InUse           int
	Dominant        byte
	DominantCount   uint64
	Symbols         int
	Tables          int
	Bits            uint64
}

// Encode writes b to w, starting with the block magic.
func Encode(w *bitstream.Writer, b *Block, opts Options) (Info, error) {
	if len(b.Data) == 0 {
		return Info{}, ErrEmptyBlock
	}
	factor := opts.Factor
	if factor == 0 {
		factor = MaxFactor
	}
	if !ValidFactor(factor) {
		return Info{}, fmt.Errorf("%w: %d", ErrFactor, factor)
	}
	if len(b.Data) > Capacity(factor) {
		return Info{}, fmt.Errorf("%w: %d bytes for factor %d", ErrTooLarge, len(b.Data), factor)
	}

	info := Info{Seq: b.Seq, CRC: b.CRC}
	start := w.BitsWritten()

	freqs := bwt.CountFrequencies(b.Data, opts.Parallelism)
	used := freqs.InUse()
	info.Dominant, info.DominantCount = freqs.Dominant()

	began := time.Now()
	res := bwt.Sort(b.Data, opts.WorkFactor)
	info.SortDuration = time.Since(began)
	info.Key = res.Key
	info.Path = res.Path
	info.BudgetExhausted = res.BudgetExhausted

	syms, err := mtf.Encode(res.BWT, &used)
	if err != nil {
		return info, err
	}
	enc, err := huffman.Encode(syms.Symbols, syms.Freqs, syms.EOB, opts.Iterations)
	if err != nil {
		return info, err
	}
	info.Symbols = len(syms.Symbols)
	info.Tables = enc.Tables()

	w.WriteUint48(Magic)
	w.WriteUint32(b.CRC)
	w.WriteBit(0)
	w.WriteUint24(res.Key)
	info.InUse = writeSymbolMap(w, &used)
	if err := enc.WriteTo(w); err != nil {
		return info, err
	}

	info.Bits = w.BitsWritten() - start
	return info, nil
}

// Decoded is a block read back from a stream.
type Decoded struct {
	// CRC is the checksum stored in the block header.
	CRC uint32
	// Computed is the checksum of Data.
	Computed uint32
	// Key is the BWT key stored in the block header.
	Key uint32
	// Data holds the raw bytes.
	Data []byte
	// Packed is the length of the block before RLE1 decoding.
	Packed int
	InUse  int
	Tables int
}

// Valid reports whether the stored and computed checksums agree.
func (d *Decoded) Valid() bool {
	return d.CRC == d.Computed
}

// Decode reads a block whose magic has already been consumed. factor bounds the size
// of the decoded block.
func Decode(r *bitstream.Reader, factor int) (*Decoded, error) {
	if !ValidFactor(factor) {
		return nil, fmt.Errorf("%w: %d", ErrFactor, factor)
	}
	capacity := Capacity(factor)

	stored, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	randomized, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	if randomized {
		return nil, ErrRandomized
	}
	key, err := r.ReadUint24()
	if err != nil {
		return nil, err
	}
	if int(key) >= capacity {
		return nil, fmt.Errorf("%w: %d with capacity %d", ErrKeyRange, key, capacity)
	}

	used, err := readSymbolMap(r)
	if err != nil {
		return nil, err
	}
	alphabet := mtf.Alphabet(&used)
	eob := uint16(len(alphabet) + 1)

	dec, err := huffman.ReadTables(r, int(eob)+1, huffman.SelectorCount(capacity+1))
	if err != nil {
		return nil, err
	}
	syms, err := dec.Decode(r, eob)
	if err != nil {
		return nil, err
	}

	packed, err := mtf.Decode(syms, alphabet, capacity)
	if err != nil {
		return nil, err
	}
	if int(key) >= len(packed) {
		return nil, fmt.Errorf("%w: %d for a block of %d bytes", ErrKeyRange, key, len(packed))
	}
	inv, err := bwt.Inverse(packed, key)
	if err != nil {
		return nil, err
	}
	data, err := rle.Decode(make([]byte, 0, rle.DecodedLen(inv)), inv)
	if err != nil {
		return nil, err
	}

	return &Decoded{
		CRC:      stored,
		Computed: crc.Checksum(data),
		Key:      key,
		Data:     data,
		Packed:   len(packed),
		InUse:    len(alphabet),
		Tables:   len(dec.Lengths),
	}, nil
}
