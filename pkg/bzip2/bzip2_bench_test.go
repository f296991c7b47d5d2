package bzip2

import (
	"bytes"
	stdbzip2 "compress/bzip2"
	"fmt"
	"io"
	"testing"
)

func BenchmarkWriter(b *testing.B) {
	data := textData(40, 4<<20)

	for _, workers := range []int{1, 4} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			for i := 0; i < b.N; i++ {
				zw, err := NewWriter(io.Discard, WithWorkers(workers))
				if err != nil {
					b.Fatalf("Failed to create writer: %v", err)
				}
				zw.Write(data)
				if err := zw.Close(); err != nil {
					b.Fatalf("Failed to close: %v", err)
				}
			}
		})
	}
}

func BenchmarkRepetitive(b *testing.B) {
	data := bytes.Repeat([]byte("abcdefgh"), 100000)
	b.SetBytes(int64(len(data)))
	for i := 0; i < b.N; i++ {
		compress(b, data, WithWorkers(1))
	}
}

func BenchmarkReader(b *testing.B) {
	data := textData(41, 4<<20)
	compressed, _ := compress(b, data)

	b.Run("kbz", func(b *testing.B) {
		b.SetBytes(int64(len(data)))
		for i := 0; i < b.N; i++ {
			zr, err := NewReader(bytes.NewReader(compressed))
			if err != nil {
				b.Fatalf("Failed to create reader: %v", err)
			}
			io.Copy(io.Discard, zr)
		}
	})

	b.Run("stdlib", func(b *testing.B) {
		b.SetBytes(int64(len(data)))
		for i := 0; i < b.N; i++ {
			io.Copy(io.Discard, stdbzip2.NewReader(bytes.NewReader(compressed)))
		}
	})
}
