package crc

import (
	"bytes"
	"compress/bzip2"
	"io"
	"testing"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		data string
		want uint32
	}{
		{"empty", "", 0},
		{"check value", "123456789", 0xfc891918},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum([]byte(tt.data)); got != tt.want {
				t.Errorf("Expected %#08x, got %#08x", tt.want, got)
			}
		})
	}
}

func TestUpdateIsIncremental(t *testing.T) {
	data := []byte("The quick brown fox jumps over the lazy dog")
	whole := Checksum(data)

	for split := 0; split <= len(data); split++ {
		got := Update(Update(0, data[:split]), data[split:])
		if got != whole {
			t.Fatalf("Split at %d: expected %#08x, got %#08x", split, whole, got)
		}
	}

	h := New()
	_, _ = h.Write(data[:10])
	_, _ = h.Write(data[10:])
	if h.Sum32() != whole {
		t.Errorf("Expected digest %#08x, got %#08x", whole, h.Sum32())
	}
	sum := h.Sum(nil)
	if len(sum) != Size || sum[0] != byte(whole>>24) || sum[3] != byte(whole) {
		t.Errorf("Unexpected big-endian sum %x for %#08x", sum, whole)
	}
}

func TestFold(t *testing.T) {
	if got := Fold(0x80000000, 0); got != 1 {
		t.Errorf("Expected rotate to carry the top bit, got %#x", got)
	}
	if got := Fold(0x00000001, 0x3); got != 0x1 {
		t.Errorf("Expected 2^3=1, got %#x", got)
	}

	blocks := []uint32{0xdeadbeef, 0x12345678, 0xfeedface}
	var acc uint32
	for _, b := range blocks {
		acc = (acc<<1 | acc>>31) ^ b
	}
	if got := FoldAll(blocks); got != acc {
		t.Errorf("Expected %#08x, got %#08x", acc, got)
	}
}

// A hand-built single-block stream is accepted by the standard library decoder only
// when the block and stream checksums match this implementation.
func TestChecksumAgainstStandardDecoder(t *testing.T) {
	// "hello" compressed by the reference bzip2 1.0.8 with -9
	stream := []byte{
		0x42, 0x5a, 0x68, 0x39, 0x31, 0x41, 0x59, 0x26, 0x53, 0x59, 0x19, 0x31,
		0x65, 0x3d, 0x00, 0x00, 0x00, 0x81, 0x00, 0x02, 0x44, 0xa0, 0x00, 0x21,
		0x9a, 0x68, 0x33, 0x4d, 0x07, 0x33, 0x8b, 0xb9, 0x22, 0x9c, 0x28, 0x48,
		0x0c, 0x98, 0xb2, 0x9e, 0x80,
	}
	out, err := io.ReadAll(bzip2.NewReader(bytes.NewReader(stream)))
	if err != nil {
		t.Fatalf("Failed to decode reference stream: %v", err)
	}
	if want := Checksum(out); want != 0x1931653d {
		t.Errorf("Expected block CRC 0x1931653d, got %#08x", want)
	}
}
