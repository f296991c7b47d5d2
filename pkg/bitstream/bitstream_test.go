package bitstream

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

type bitField struct {
	value uint32
	n     uint
}

func randomFields(rng *rand.Rand, count int) []bitField {
	fields := make([]bitField, count)
	for i := range fields {
		n := uint(rng.Intn(MaxBitsPerCall + 1))
		v := rng.Uint32()
		if n < 32 {
			v &= 1<<n - 1
		}
		fields[i] = bitField{value: v, n: n}
	}
	return fields
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, chunk := range []int{1, 3, 64, DefaultChunkSize} {
		fields := randomFields(rng, 5000)

		var sink bytes.Buffer
		w := NewWriterSize(&sink, chunk)
		var total uint64
		for _, f := range fields {
			w.WriteBits(f.value, f.n)
			total += uint64(f.n)
		}
		if w.BitsWritten() != total {
			t.Fatalf("Expected %d bits written, got %d", total, w.BitsWritten())
		}
		if err := w.Flush(); err != nil {
			t.Fatalf("Failed to flush: %v", err)
		}

		if want := int((total + 7) / 8); sink.Len() != want {
			t.Fatalf("Expected %d bytes, got %d", want, sink.Len())
		}

		r := NewReaderSize(bytes.NewReader(sink.Bytes()), chunk)
		for i, f := range fields {
			got, err := r.ReadBits(f.n)
			if err != nil {
				t.Fatalf("Failed to read field %d: %v", i, err)
			}
			if got != f.value {
				t.Fatalf("Field %d (n=%d): expected %#x, got %#x", i, f.n, f.value, got)
			}
		}
		if r.BitsRead() != total {
			t.Errorf("Expected %d bits read, got %d", total, r.BitsRead())
		}
	}
}

func TestFlushPadding(t *testing.T) {
	tests := []struct {
		name   string
		writes []bitField
		want   []byte
	}{
		{"single bit", []bitField{{1, 1}}, []byte{0x80}},
		{"three bits", []bitField{{0x5, 3}}, []byte{0xa0}},
		{"byte plus one", []bitField{{0xff, 8}, {1, 1}}, []byte{0xff, 0x80}},
		{"exact bytes", []bitField{{0xabcd, 16}}, []byte{0xab, 0xcd}},
		{"zero width", []bitField{{0xffff, 0}, {0x3, 2}}, []byte{0xc0}},
		{"full word", []bitField{{0xdeadbeef, 32}, {0, 4}}, []byte{0xde, 0xad, 0xbe, 0xef, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sink bytes.Buffer
			w := NewWriter(&sink)
			for _, f := range tt.writes {
				w.WriteBits(f.value, f.n)
			}
			if err := w.Flush(); err != nil {
				t.Fatalf("Failed to flush: %v", err)
			}
			if !bytes.Equal(sink.Bytes(), tt.want) {
				t.Errorf("Expected %x, got %x", tt.want, sink.Bytes())
			}
		})
	}
}

func TestReadPastEnd(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xf0}))

	v, err := r.ReadBits(4)
	if err != nil || v != 0xf {
		t.Fatalf("Expected 0xf, got %#x (%v)", v, err)
	}
	if _, err := r.ReadBits(5); !errors.Is(err, ErrNoMoreData) {
		t.Fatalf("Expected ErrNoMoreData, got %v", err)
	}
	// The error is sticky even for reads that would fit
	if _, err := r.ReadBits(1); !errors.Is(err, ErrNoMoreData) {
		t.Errorf("Expected sticky ErrNoMoreData, got %v", err)
	}
}

func TestBitCountOutOfRange(t *testing.T) {
	w := NewBuffer(0)
	w.WriteBits(0, 33)
	if !errors.Is(w.Err(), ErrBitCount) {
		t.Errorf("Expected ErrBitCount, got %v", w.Err())
	}

	r := NewReader(bytes.NewReader(make([]byte, 8)))
	if _, err := r.ReadBits(40); !errors.Is(err, ErrBitCount) {
		t.Errorf("Expected ErrBitCount, got %v", err)
	}
}

func TestBitStringAppend(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	// Build two unaligned segments in memory and splice them into one stream
	var fields [][]bitField
	var segments []*Writer
	for i := 0; i < 3; i++ {
		f := randomFields(rng, 100+i*37)
		seg := NewBuffer(64)
		for _, x := range f {
			seg.WriteBits(x.value, x.n)
		}
		fields = append(fields, f)
		segments = append(segments, seg)
	}

	var sink bytes.Buffer
	w := NewWriterSize(&sink, 16)
	w.WriteBits(0x5, 3)
	for _, seg := range segments {
		data, nbits, err := seg.BitString()
		if err != nil {
			t.Fatalf("Failed to get bit string: %v", err)
		}
		if nbits != seg.BitsWritten() {
			t.Fatalf("Expected %d bits, got %d", seg.BitsWritten(), nbits)
		}
		w.WriteBitString(data, nbits)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}

	r := NewReader(bytes.NewReader(sink.Bytes()))
	if v, _ := r.ReadBits(3); v != 0x5 {
		t.Fatalf("Expected prefix 0x5, got %#x", v)
	}
	for s, f := range fields {
		for i, x := range f {
			got, err := r.ReadBits(x.n)
			if err != nil {
				t.Fatalf("Segment %d field %d: %v", s, i, err)
			}
			if got != x.value {
				t.Fatalf("Segment %d field %d: expected %#x, got %#x", s, i, x.value, got)
			}
		}
	}
}

func TestAlignAndWideFields(t *testing.T) {
	var sink bytes.Buffer
	w := NewWriter(&sink)
	w.WriteBits(1, 1)
	w.WriteUint48(0x314159265359)
	w.WriteBits(0, 7)
	_ = w.WriteByte('Z')
	if err := w.Flush(); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}

	r := NewReader(bytes.NewReader(sink.Bytes()))
	if ok, _ := r.ReadBool(); !ok {
		t.Fatal("Expected leading set bit")
	}
	magic, err := r.ReadUint48()
	if err != nil || magic != 0x314159265359 {
		t.Fatalf("Expected block magic, got %#x (%v)", magic, err)
	}
	r.Align()
	if r.BitsRead() != 56 {
		t.Fatalf("Expected 56 bits read after align, got %d", r.BitsRead())
	}
	b, err := r.ReadByte()
	if err != nil || b != 'Z' {
		t.Fatalf("Expected 'Z', got %q (%v)", b, err)
	}
	if !r.AtEOF() {
		t.Error("Expected reader to be at EOF")
	}
}
