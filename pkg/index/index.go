// Package index describes where each block of a bzip2 file starts, in compressed bits
// and in uncompressed bytes, so a reader can seek to a block without decoding the ones
// before it.
//
// The encoded form is a sequence of fixed-size entries followed by a footer carrying
// the entry count and an xxhash of everything before the checksum field.
package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"
)

const (
	// EntrySize is the encoded size of one entry in bytes
	EntrySize = 28
	// FooterSize is the encoded size of the footer in bytes
	FooterSize = 24
	// FooterMagic marks the end of an index
	FooterMagic = uint64(0x6B627A2E69647821)
	// CurrentVersion is the current index format version
	CurrentVersion = uint32(1)
	// FileSuffix is appended to a compressed file name to name its index
	FileSuffix = ".idx"
)

var (
	// ErrTruncated is returned when the data is shorter than the footer says
	ErrTruncated = errors.New("index: truncated")
	// ErrBadMagic is returned when the footer magic does not match
	ErrBadMagic = errors.New("index: bad footer magic")
	// ErrVersion is returned for an unknown format version
	ErrVersion = errors.New("index: unsupported version")
	// ErrChecksum is returned when the stored checksum does not match the data
	ErrChecksum = errors.New("index: checksum mismatch")
	// ErrLayout is returned when entries are not contiguous and increasing
	ErrLayout = errors.New("index: entries out of order")
)

// Entry locates one block.
type Entry struct {
	// BitOffset is the position of the block magic in the compressed file, in bits.
	BitOffset uint64
	// RawOffset is the position of the block's first byte in the uncompressed data.
	RawOffset int64
	// RawSize is the number of uncompressed bytes in the block.
	RawSize int64
	// CRC is the block checksum stored in the block header.
	CRC uint32
	// Factor is the block size digit of the stream holding the block.
	Factor int
}

// End returns the uncompressed offset just past the block.
func (e Entry) End() int64 {
	return e.RawOffset + e.RawSize
}

// Index is an ordered list of block entries.
type Index struct {
	Entries []Entry
}

// Add appends an entry.
func (ix *Index) Add(e Entry) {
	ix.Entries = append(ix.Entries, e)
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	return len(ix.Entries)
}

// RawSize returns the total uncompressed size covered by the index.
func (ix *Index) RawSize() int64 {
	if len(ix.Entries) == 0 {
		return 0
	}
	return ix.Entries[len(ix.Entries)-1].End()
}

// Locate returns the position of the entry holding the uncompressed byte at offset.
func (ix *Index) Locate(offset int64) (int, bool) {
	if offset < 0 || offset >= ix.RawSize() {
		return 0, false
	}
	i := sort.Search(len(ix.Entries), func(i int) bool {
		return ix.Entries[i].End() > offset
	})
	return i, i < len(ix.Entries)
}

// Validate checks that entries cover the uncompressed data contiguously and that
// compressed offsets increase.
func (ix *Index) Validate() error {
	var raw int64
	var bits uint64
	for i, e := range ix.Entries {
		if e.RawOffset != raw {
			return fmt.Errorf("%w: entry %d starts at %d, expected %d", ErrLayout, i, e.RawOffset, raw)
		}
		if i > 0 && e.BitOffset <= bits {
			return fmt.Errorf("%w: entry %d bit offset %d not after %d", ErrLayout, i, e.BitOffset, bits)
		}
		if e.RawSize <= 0 || e.Factor < 1 || e.Factor > 9 {
			return fmt.Errorf("%w: entry %d has size %d and factor %d", ErrLayout, i, e.RawSize, e.Factor)
		}
		raw = e.End()
		bits = e.BitOffset
	}
	return nil
}

// Encode serializes the index.
func (ix *Index) Encode() []byte {
	out := make([]byte, len(ix.Entries)*EntrySize+FooterSize)

	for i, e := range ix.Entries {
		b := out[i*EntrySize:]
		binary.LittleEndian.PutUint64(b[0:8], e.BitOffset)
		binary.LittleEndian.PutUint64(b[8:16], uint64(e.RawOffset))
		binary.LittleEndian.PutUint32(b[16:20], uint32(e.RawSize))
		binary.LittleEndian.PutUint32(b[20:24], e.CRC)
		binary.LittleEndian.PutUint32(b[24:28], uint32(e.Factor))
	}

	f := out[len(ix.Entries)*EntrySize:]
	binary.LittleEndian.PutUint64(f[0:8], FooterMagic)
	binary.LittleEndian.PutUint32(f[8:12], CurrentVersion)
	binary.LittleEndian.PutUint32(f[12:16], uint32(len(ix.Entries)))

	// Checksum everything except the checksum itself
	sum := xxhash.Sum64(out[:len(out)-8])
	binary.LittleEndian.PutUint64(f[16:24], sum)

	return out
}

// WriteTo writes the encoded index to w.
func (ix *Index) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(ix.Encode())
	return int64(n), err
}

// Decode parses an index produced by Encode.
func Decode(data []byte) (*Index, error) {
	if len(data) < FooterSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrTruncated, len(data), FooterSize)
	}

	f := data[len(data)-FooterSize:]
	if magic := binary.LittleEndian.Uint64(f[0:8]); magic != FooterMagic {
		return nil, fmt.Errorf("%w: %x", ErrBadMagic, magic)
	}
	if version := binary.LittleEndian.Uint32(f[8:12]); version != CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, version)
	}
	count := int(binary.LittleEndian.Uint32(f[12:16]))
	if len(data) != count*EntrySize+FooterSize {
		return nil, fmt.Errorf("%w: %d bytes for %d entries", ErrTruncated, len(data), count)
	}

	stored := binary.LittleEndian.Uint64(f[16:24])
	if computed := xxhash.Sum64(data[:len(data)-8]); stored != computed {
		return nil, fmt.Errorf("%w: stored %x, computed %x", ErrChecksum, stored, computed)
	}

	ix := &Index{Entries: make([]Entry, count)}
	for i := range ix.Entries {
		b := data[i*EntrySize:]
		ix.Entries[i] = Entry{
			BitOffset: binary.LittleEndian.Uint64(b[0:8]),
			RawOffset: int64(binary.LittleEndian.Uint64(b[8:16])),
			RawSize:   int64(binary.LittleEndian.Uint32(b[16:20])),
			CRC:       binary.LittleEndian.Uint32(b[20:24]),
			Factor:    int(binary.LittleEndian.Uint32(b[24:28])),
		}
	}

	if err := ix.Validate(); err != nil {
		return nil, err
	}
	return ix, nil
}

// ReadFile loads and decodes the index stored at path.
func ReadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	return Decode(data)
}

// WriteFile stores the index at path, writing a temporary file first and renaming
// it into place.
func (ix *Index) WriteFile(path string) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, ix.Encode(), 0644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename index: %w", err)
	}
	return nil
}
