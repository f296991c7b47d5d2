// Package rle implements the initial run-length pass of bzip2 (RLE1): a run of 4 to 259
// identical bytes is written as four copies followed by a count byte holding the number
// of further repeats.
package rle

import "errors"

const (
	// MinRun is the run length at which a count byte is emitted.
	MinRun = 4
	// MaxRun is the longest run a single count byte can describe.
	MaxRun = MinRun + 255
)

// ErrMissingCount is returned when an encoded buffer ends after four equal bytes.
var ErrMissingCount = errors.New("rle: run of four bytes without a count")

// Encode appends the RLE1 encoding of src to dst.
func Encode(dst, src []byte) []byte {
	e := Encoder{out: dst, limit: -1}
	e.Write(src)
	e.Flush()
	return e.out
}

// Decode appends the inverse of Encode to dst.
func Decode(dst, src []byte) ([]byte, error) {
	var last byte
	run := 0
	for i := 0; i < len(src); i++ {
		b := src[i]
		if run == MinRun {
			for j := 0; j < int(b); j++ {
				dst = append(dst, last)
			}
			run = 0
			continue
		}
		if run > 0 && b == last {
			run++
		} else {
			last = b
			run = 1
		}
		dst = append(dst, b)
	}
	if run == MinRun {
		return dst, ErrMissingCount
	}
	return dst, nil
}

// DecodedLen returns the length Decode would produce for src.
func DecodedLen(src []byte) int {
	n := 0
	var last byte
	run := 0
	for _, b := range src {
		if run == MinRun {
			n += int(b)
			run = 0
			continue
		}
		if run > 0 && b == last {
			run++
		} else {
			last = b
			run = 1
		}
		n++
	}
	return n
}

// Encoder fills one block with RLE1 output until the output reaches a byte limit.
// The pending run is carried between writes so runs spanning Write calls are encoded
// exactly as if the input had arrived at once.
type Encoder struct {
	out   []byte
	limit int // -1 means unbounded

	cur    byte
	runLen int

	consumed int64
}

// NewEncoder creates an Encoder whose output stops growing once it reaches limit bytes.
// The final Flush may add up to five bytes past the limit, so callers reserve that much
// headroom below the real capacity.
func NewEncoder(limit int) *Encoder {
	return &Encoder{
		out:   make([]byte, 0, limit+MinRun+1),
		limit: limit,
	}
}

// Write consumes bytes from p until the block is full and returns how many it took.
func (e *Encoder) Write(p []byte) int {
	for i, b := range p {
		if e.Full() {
			e.consumed += int64(i)
			return i
		}
		if e.runLen > 0 && b == e.cur && e.runLen < MaxRun {
			e.runLen++
			continue
		}
		e.flushRun()
		e.cur = b
		e.runLen = 1
	}
	e.consumed += int64(len(p))
	return len(p)
}

// Full reports whether the encoder has reached its limit.
func (e *Encoder) Full() bool {
	return e.limit >= 0 && len(e.out) >= e.limit
}

// Flush emits the pending run. It is called once, before Bytes is used.
func (e *Encoder) Flush() {
	e.flushRun()
	e.runLen = 0
}

// Bytes returns the encoded block.
func (e *Encoder) Bytes() []byte {
	return e.out
}

// Len returns the number of encoded bytes, excluding the pending run.
func (e *Encoder) Len() int {
	return len(e.out)
}

// Consumed returns the number of input bytes accepted so far.
func (e *Encoder) Consumed() int64 {
	return e.consumed
}

// Empty reports whether no input has been accepted.
func (e *Encoder) Empty() bool {
	return e.consumed == 0
}

// Reset clears the encoder for the next block, keeping its buffer.
func (e *Encoder) Reset() {
	e.out = e.out[:0]
	e.runLen = 0
	e.consumed = 0
}

func (e *Encoder) flushRun() {
	switch {
	case e.runLen == 0:
		return
	case e.runLen < MinRun:
		for i := 0; i < e.runLen; i++ {
			e.out = append(e.out, e.cur)
		}
	default:
		e.out = append(e.out, e.cur, e.cur, e.cur, e.cur, byte(e.runLen-MinRun))
	}
	e.runLen = 0
}
