// Package bitstream implements the MSB-first bit-level reader and writer used by the
// bzip2 block and stream codecs.
package bitstream

import (
	"errors"
	"fmt"
	"io"
)

const (
	// DefaultChunkSize is the size of the byte window moved between the bit queue and
	// the underlying stream.
	DefaultChunkSize = 1 << 20

	// MaxBitsPerCall is the widest value accepted by WriteBits and ReadBits.
	MaxBitsPerCall = 32
)

var (
	// ErrNoMoreData is returned when a read needs more bits than the source holds
	ErrNoMoreData = errors.New("bitstream: no more data")
	// ErrBitCount is returned when more than 32 bits are requested in one call
	ErrBitCount = errors.New("bitstream: bit count out of range")
	// ErrNotBuffered is returned by BitString on a writer that streams to a sink
	ErrNotBuffered = errors.New("bitstream: writer is not buffered")
	// ErrReadFailed wraps errors returned by the underlying source
	ErrReadFailed = errors.New("bitstream: read failed")
	// ErrWriteFailed wraps errors returned by the underlying sink
	ErrWriteFailed = errors.New("bitstream: write failed")
)

// Writer packs values most-significant-bit first. Full bytes are staged in a chunk
// buffer and pushed to the sink when the chunk fills or on Flush. A Writer created
// with NewBuffer keeps everything in memory instead.
//
// Errors are sticky: after the first failure every call is a no-op and Flush and Err
// report the original error.
type Writer struct {
	w     io.Writer
	buf   []byte
	chunk int

	queue uint64
	nbits uint

	written uint64
	err     error
}

// NewWriter creates a Writer pushing bytes to w in DefaultChunkSize chunks.
func NewWriter(w io.Writer) *Writer {
	return NewWriterSize(w, DefaultChunkSize)
}

// NewWriterSize creates a Writer with the given chunk size.
func NewWriterSize(w io.Writer, chunk int) *Writer {
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	return &Writer{
		w:     w,
		buf:   make([]byte, 0, chunk),
		chunk: chunk,
	}
}

// NewBuffer creates an in-memory Writer whose output is retrieved with BitString.
func NewBuffer(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// WriteBits appends the low n bits of value. n must be in 0..32.
func (w *Writer) WriteBits(value uint32, n uint) {
	if w.err != nil || n == 0 {
		return
	}
	if n > MaxBitsPerCall {
		w.err = fmt.Errorf("%w: %d", ErrBitCount, n)
		return
	}

	w.queue = w.queue<<n | uint64(value)&(1<<n-1)
	w.nbits += n
	w.written += uint64(n)

	for w.nbits >= 8 {
		w.nbits -= 8
		w.buf = append(w.buf, byte(w.queue>>w.nbits))
	}
	w.queue &= 1<<w.nbits - 1

	if w.w != nil && len(w.buf) >= w.chunk {
		w.drain()
	}
}

// WriteBit appends a single bit.
func (w *Writer) WriteBit(bit uint32) {
	w.WriteBits(bit&1, 1)
}

// WriteBool appends 1 for true and 0 for false.
func (w *Writer) WriteBool(b bool) {
	if b {
		w.WriteBits(1, 1)
	} else {
		w.WriteBits(0, 1)
	}
}

// WriteByte appends eight bits.
func (w *Writer) WriteByte(b byte) error {
	w.WriteBits(uint32(b), 8)
	return w.err
}

// WriteUint16 appends a 16-bit value.
func (w *Writer) WriteUint16(v uint16) {
	w.WriteBits(uint32(v), 16)
}

// WriteUint24 appends the low 24 bits of v.
func (w *Writer) WriteUint24(v uint32) {
	w.WriteBits(v, 24)
}

// WriteUint32 appends a 32-bit value.
func (w *Writer) WriteUint32(v uint32) {
	w.WriteBits(v, 32)
}

// WriteUint48 appends the low 48 bits of v, as used by the block and footer magics.
func (w *Writer) WriteUint48(v uint64) {
	w.WriteBits(uint32(v>>24), 24)
	w.WriteBits(uint32(v), 24)
}

// WriteBytes appends whole bytes.
func (w *Writer) WriteBytes(p []byte) {
	w.WriteBitString(p, uint64(len(p))*8)
}

// WriteBitString appends the first nbits bits of data, as produced by BitString.
func (w *Writer) WriteBitString(data []byte, nbits uint64) {
	if w.err != nil {
		return
	}
	full := int(nbits / 8)
	if full > len(data) {
		w.err = fmt.Errorf("%w: bit string of %d bits backed by %d bytes", ErrBitCount, nbits, len(data))
		return
	}

	if w.nbits == 0 {
		// Byte aligned: copy straight into the chunk buffer
		for off := 0; off < full; {
			room := full - off
			if w.w != nil {
				room = min(room, w.chunk-len(w.buf))
			}
			w.buf = append(w.buf, data[off:off+room]...)
			off += room
			w.written += uint64(room) * 8
			if w.w != nil && len(w.buf) >= w.chunk {
				w.drain()
				if w.err != nil {
					return
				}
			}
		}
	} else {
		for _, b := range data[:full] {
			w.WriteBits(uint32(b), 8)
		}
	}

	if rem := uint(nbits % 8); rem > 0 {
		w.WriteBits(uint32(data[full]>>(8-rem)), rem)
	}
}

// BitsWritten returns the number of bits appended so far.
func (w *Writer) BitsWritten() uint64 {
	return w.written
}

// Err returns the first error encountered.
func (w *Writer) Err() error {
	return w.err
}

// BitString returns the buffered output of an in-memory Writer without padding it.
// The final byte holds the trailing bits left aligned.
func (w *Writer) BitString() ([]byte, uint64, error) {
	if w.w != nil {
		return nil, 0, ErrNotBuffered
	}
	if w.err != nil {
		return nil, 0, w.err
	}
	out := w.buf
	if w.nbits > 0 {
		out = append(out[:len(out):len(out)], byte(w.queue<<(8-w.nbits)))
	}
	return out, w.written, nil
}

// Flush pads the partial byte with zero bits and pushes all staged bytes to the sink.
// It must be called once, after the final write.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if w.nbits > 0 {
		pad := 8 - w.nbits
		w.buf = append(w.buf, byte(w.queue<<pad))
		w.written += uint64(pad)
		w.queue = 0
		w.nbits = 0
	}
	if w.w != nil {
		w.drain()
	}
	return w.err
}

// drain writes the staged bytes to the sink.
func (w *Writer) drain() {
	if len(w.buf) == 0 {
		return
	}
	if _, err := w.w.Write(w.buf); err != nil {
		w.err = fmt.Errorf("%w: %w", ErrWriteFailed, err)
		return
	}
	w.buf = w.buf[:0]
}
