package bzip2

import (
	"bytes"
	"io"
	"testing"

	"github.com/KevoDB/kbz/pkg/common/log"
)

func FuzzReader(f *testing.F) {
	for _, seed := range [][]byte{
		[]byte("Goofy test"),
		bytes.Repeat([]byte("ab"), 3000),
		textData(30, 4000),
	} {
		compressed, _ := compress(f, seed)
		f.Add(compressed)
	}
	f.Add([]byte("BZh9"))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		zr, err := NewReader(bytes.NewReader(data), WithBlockSize(1), WithLogger(log.Discard()))
		if err != nil {
			t.Fatalf("Failed to create reader: %v", err)
		}
		// Corrupt input must produce an error, never a panic
		io.Copy(io.Discard, zr)
	})
}

func FuzzRoundTrip(f *testing.F) {
	f.Add([]byte("Goofy test"))
	f.Add([]byte{0, 0, 0, 0, 0, 1})
	f.Add(bytes.Repeat([]byte{0xff}, 300))

	f.Fuzz(func(t *testing.T, data []byte) {
		compressed, _ := compress(t, data, WithBlockSize(1), WithWorkers(2))
		out, _ := decompress(t, compressed)
		if !bytes.Equal(out, data) {
			t.Fatalf("Round trip mismatch for %d bytes", len(data))
		}
	})
}
