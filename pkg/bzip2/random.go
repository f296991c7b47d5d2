package bzip2

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/KevoDB/kbz/pkg/bitstream"
	"github.com/KevoDB/kbz/pkg/block"
	"github.com/KevoDB/kbz/pkg/index"
)

const randomReadChunk = 64 << 10

// ReadBlockAt decodes the single block whose magic starts bitOffset bits into ra.
// factor is the block size digit of the stream holding the block. The checksum is
// not checked; see block.Decoded.Valid.
func ReadBlockAt(ra io.ReaderAt, bitOffset uint64, factor int) (*block.Decoded, error) {
	base := int64(bitOffset / 8)
	br := bitstream.NewReaderSize(io.NewSectionReader(ra, base, math.MaxInt64-base), randomReadChunk)

	d, err := readBlockAt(br, bitOffset%8, factor)
	if err != nil {
		var se *StructuralError
		if errors.As(err, &se) {
			se.BitOffset += uint64(base) * 8
		}
		return nil, err
	}
	return d, nil
}

func readBlockAt(br *bitstream.Reader, skip uint64, factor int) (*block.Decoded, error) {
	if err := br.Skip(skip); err != nil {
		return nil, classify(br, "seeking to block", err)
	}
	magic, err := br.ReadUint48()
	if err != nil {
		return nil, classify(br, "reading block magic", err)
	}
	if magic != block.Magic {
		return nil, corrupt(br, fmt.Sprintf("bad block magic %012x", magic), nil)
	}
	d, err := block.Decode(br, factor)
	if err != nil {
		return nil, classify(br, "decoding block", err)
	}
	return d, nil
}

// IndexedReader serves random reads from a compressed file using its block index.
// It keeps the most recently decoded block. It is safe for concurrent use.
type IndexedReader struct {
	ra io.ReaderAt
	ix *index.Index

	mu     sync.Mutex
	cached int
	data   []byte
}

// NewIndexedReader returns an IndexedReader over ra described by ix.
func NewIndexedReader(ra io.ReaderAt, ix *index.Index) *IndexedReader {
	return &IndexedReader{ra: ra, ix: ix, cached: -1}
}

// Size returns the uncompressed size.
func (ir *IndexedReader) Size() int64 {
	return ir.ix.RawSize()
}

// ReadAt implements io.ReaderAt over the uncompressed data. A block whose checksum
// does not match fails the read with a *ChecksumError.
func (ir *IndexedReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("bzip2: negative offset %d", off)
	}

	n := 0
	for n < len(p) {
		i, ok := ir.ix.Locate(off + int64(n))
		if !ok {
			return n, io.EOF
		}
		data, err := ir.block(i)
		if err != nil {
			return n, err
		}
		e := ir.ix.Entries[i]
		n += copy(p[n:], data[off+int64(n)-e.RawOffset:])
	}
	return n, nil
}

func (ir *IndexedReader) block(i int) ([]byte, error) {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	if ir.cached == i {
		return ir.data, nil
	}

	e := ir.ix.Entries[i]
	d, err := ReadBlockAt(ir.ra, e.BitOffset, e.Factor)
	if err != nil {
		return nil, err
	}
	if !d.Valid() {
		return nil, &ChecksumError{Mismatches: []Mismatch{{Block: i, Stored: d.CRC, Computed: d.Computed}}}
	}
	if int64(len(d.Data)) != e.RawSize {
		return nil, &StructuralError{BitOffset: e.BitOffset, Msg: fmt.Sprintf("block %d holds %d bytes, index says %d", i, len(d.Data), e.RawSize)}
	}

	ir.cached, ir.data = i, d.Data
	return d.Data, nil
}
