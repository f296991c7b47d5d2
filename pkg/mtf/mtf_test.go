package mtf

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

func TestEncodeRuns(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []uint16
	}{
		// alphabet {a}: EOB = 2, every byte is a rank-0 repeat
		{"one zero", "a", []uint16{RunA, 2}},
		{"two zeros", "aa", []uint16{RunB, 2}},
		{"three zeros", "aaa", []uint16{RunA, RunA, 2}},
		{"four zeros", "aaaa", []uint16{RunB, RunA, 2}},
		{"five zeros", "aaaaa", []uint16{RunA, RunB, 2}},
		// alphabet {a,b}: EOB = 3, rank 1 is symbol 2
		{"alternating", "abab", []uint16{RunA, 2, 2, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte(tt.in)
			used := InUse(data)
			enc, err := Encode(data, &used)
			if err != nil {
				t.Fatalf("Failed to encode: %v", err)
			}
			if len(enc.Symbols) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, enc.Symbols)
			}
			for i := range tt.want {
				if enc.Symbols[i] != tt.want[i] {
					t.Fatalf("Expected %v, got %v", tt.want, enc.Symbols)
				}
			}

			var total uint32
			for _, f := range enc.Freqs {
				total += f
			}
			if int(total) != len(enc.Symbols) {
				t.Errorf("Expected frequencies to sum to %d, got %d", len(enc.Symbols), total)
			}
			if enc.Freqs[enc.EOB] != 1 {
				t.Errorf("Expected EOB exactly once, got %d", enc.Freqs[enc.EOB])
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	inputs := [][]byte{
		[]byte("x"),
		bytes.Repeat([]byte("z"), 100000),
		[]byte("banana bandana"),
	}
	for i := 0; i < 50; i++ {
		n := 1 + rng.Intn(5000)
		buf := make([]byte, n)
		for j := range buf {
			// Narrow alphabet with long runs so RUNA/RUNB sequences are exercised
			if j > 0 && rng.Intn(4) != 0 {
				buf[j] = buf[j-1]
			} else {
				buf[j] = byte(rng.Intn(1 + i*5))
			}
		}
		inputs = append(inputs, buf)
	}

	for i, in := range inputs {
		used := InUse(in)
		enc, err := Encode(in, &used)
		if err != nil {
			t.Fatalf("Input %d: failed to encode: %v", i, err)
		}
		if got := enc.EOB; int(got) != len(Alphabet(&used))+1 {
			t.Fatalf("Input %d: expected EOB %d, got %d", i, len(Alphabet(&used))+1, got)
		}
		body := enc.Symbols[:len(enc.Symbols)-1]
		out, err := Decode(body, Alphabet(&used), len(in))
		if err != nil {
			t.Fatalf("Input %d: failed to decode: %v", i, err)
		}
		if !bytes.Equal(out, in) {
			t.Fatalf("Input %d: round trip mismatch", i)
		}
	}
}

func TestDecodeLimits(t *testing.T) {
	alphabet := []byte("ab")

	if _, err := Decode([]uint16{RunB, RunB, RunB}, alphabet, 5); !errors.Is(err, ErrRunOverflow) {
		t.Errorf("Expected ErrRunOverflow, got %v", err)
	}
	if _, err := Decode([]uint16{2, 2, 2}, alphabet, 2); !errors.Is(err, ErrOutputLimit) {
		t.Errorf("Expected ErrOutputLimit, got %v", err)
	}
	if _, err := Decode([]uint16{7}, alphabet, 10); !errors.Is(err, ErrBadSymbol) {
		t.Errorf("Expected ErrBadSymbol, got %v", err)
	}
	if _, err := Decode(nil, nil, 10); !errors.Is(err, ErrEmptyAlphabet) {
		t.Errorf("Expected ErrEmptyAlphabet, got %v", err)
	}
}
