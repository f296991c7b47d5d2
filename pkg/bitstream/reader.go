package bitstream

import (
	"errors"
	"fmt"
	"io"
)

// Reader unpacks values most-significant-bit first from a byte source, refilling its
// window in chunks. Reading past the end of the source yields ErrNoMoreData; it never
// substitutes zero bits.
type Reader struct {
	r   io.Reader
	buf []byte
	pos int
	end int

	queue uint64
	nbits uint

	loaded uint64 // bytes moved from buf into the queue
	err    error
}

// NewReader creates a Reader with a DefaultChunkSize window.
func NewReader(r io.Reader) *Reader {
	return NewReaderSize(r, DefaultChunkSize)
}

// NewReaderSize creates a Reader with the given window size.
func NewReaderSize(r io.Reader, chunk int) *Reader {
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	return &Reader{
		r:   r,
		buf: make([]byte, chunk),
	}
}

// ReadBits returns the next n bits as an unsigned integer. n must be in 0..32.
func (r *Reader) ReadBits(n uint) (uint32, error) {
	if r.err != nil {
		return 0, r.err
	}
	if n > MaxBitsPerCall {
		return 0, fmt.Errorf("%w: %d", ErrBitCount, n)
	}

	for r.nbits < n {
		b, err := r.nextByte()
		if err != nil {
			return 0, err
		}
		r.queue = r.queue<<8 | uint64(b)
		r.nbits += 8
	}

	r.nbits -= n
	v := uint32(r.queue >> r.nbits & (1<<n - 1))
	r.queue &= 1<<r.nbits - 1
	return v, nil
}

// ReadBit returns the next bit.
func (r *Reader) ReadBit() (uint32, error) {
	return r.ReadBits(1)
}

// ReadBool returns true when the next bit is set.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadBits(1)
	return v == 1, err
}

// ReadByte returns the next eight bits.
func (r *Reader) ReadByte() (byte, error) {
	v, err := r.ReadBits(8)
	return byte(v), err
}

// ReadUint16 returns the next 16 bits.
func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.ReadBits(16)
	return uint16(v), err
}

// ReadUint24 returns the next 24 bits.
func (r *Reader) ReadUint24() (uint32, error) {
	return r.ReadBits(24)
}

// ReadUint32 returns the next 32 bits.
func (r *Reader) ReadUint32() (uint32, error) {
	return r.ReadBits(32)
}

// ReadUint48 returns the next 48 bits.
func (r *Reader) ReadUint48() (uint64, error) {
	hi, err := r.ReadBits(24)
	if err != nil {
		return 0, err
	}
	lo, err := r.ReadBits(24)
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<24 | uint64(lo), nil
}

// Align discards the bits remaining in the current partial byte.
func (r *Reader) Align() {
	drop := r.nbits % 8
	r.nbits -= drop
	r.queue &= 1<<r.nbits - 1
}

// Skip discards n bits.
func (r *Reader) Skip(n uint64) error {
	for n > 0 {
		step := uint(min(n, MaxBitsPerCall))
		if _, err := r.ReadBits(step); err != nil {
			return err
		}
		n -= uint64(step)
	}
	return nil
}

// BitsRead returns the number of bits consumed so far.
func (r *Reader) BitsRead() uint64 {
	return r.loaded*8 - uint64(r.nbits)
}

// AtEOF reports whether every bit has been consumed and the source is exhausted.
// It may trigger a refill.
func (r *Reader) AtEOF() bool {
	if r.nbits > 0 {
		return false
	}
	if r.pos < r.end {
		return false
	}
	if r.err != nil {
		return errors.Is(r.err, ErrNoMoreData)
	}
	if err := r.fill(); err != nil {
		return errors.Is(err, ErrNoMoreData)
	}
	return false
}

// Err returns the sticky error, if any.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) nextByte() (byte, error) {
	if r.pos == r.end {
		if err := r.fill(); err != nil {
			return 0, err
		}
	}
	b := r.buf[r.pos]
	r.pos++
	r.loaded++
	return b, nil
}

// fill refills the window, returning ErrNoMoreData when the source is drained.
func (r *Reader) fill() error {
	for {
		n, err := r.r.Read(r.buf)
		if n > 0 {
			r.pos, r.end = 0, n
			return nil
		}
		switch {
		case err == io.EOF:
			r.err = ErrNoMoreData
			return r.err
		case err != nil:
			r.err = fmt.Errorf("%w: %w", ErrReadFailed, err)
			return r.err
		}
	}
}
