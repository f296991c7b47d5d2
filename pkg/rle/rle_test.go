package rle

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"empty", nil, nil},
		{"short runs", []byte("aabbbc"), []byte("aabbbc")},
		{"run of four", []byte("aaaa"), []byte("aaaa\x00")},
		{"run of seven", []byte("xaaaaaaay"), []byte("xaaaa\x03y")},
		{"max run", bytes.Repeat([]byte{'z'}, MaxRun), []byte("zzzz\xff")},
		{"max run plus two", bytes.Repeat([]byte{'z'}, MaxRun+2), []byte("zzzz\xffzz")},
		{"max run plus five", bytes.Repeat([]byte{'z'}, MaxRun+5), []byte("zzzz\xffzzzz\x01")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(nil, tt.in)
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("Expected %q, got %q", tt.want, got)
			}
			back, err := Decode(nil, got)
			if err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}
			if !bytes.Equal(back, tt.in) {
				t.Errorf("Expected round trip %q, got %q", tt.in, back)
			}
			if DecodedLen(got) != len(tt.in) {
				t.Errorf("Expected decoded length %d, got %d", len(tt.in), DecodedLen(got))
			}
		})
	}
}

func TestDecodeMissingCount(t *testing.T) {
	if _, err := Decode(nil, []byte("bbbb")); !errors.Is(err, ErrMissingCount) {
		t.Errorf("Expected ErrMissingCount, got %v", err)
	}
}

func TestRandomRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		var in []byte
		for len(in) < 2000 {
			// Mix long runs with noise so every run length class occurs
			in = append(in, bytes.Repeat([]byte{byte(rng.Intn(3))}, 1+rng.Intn(600))...)
		}
		back, err := Decode(nil, Encode(nil, in))
		if err != nil {
			t.Fatalf("Iteration %d: failed to decode: %v", i, err)
		}
		if !bytes.Equal(back, in) {
			t.Fatalf("Iteration %d: round trip mismatch", i)
		}
	}
}

func TestEncoderSplitsAcrossWrites(t *testing.T) {
	in := append(bytes.Repeat([]byte{'q'}, 300), []byte("abcabc")...)
	whole := Encode(nil, in)

	e := NewEncoder(1 << 20)
	for _, b := range in {
		if n := e.Write([]byte{b}); n != 1 {
			t.Fatalf("Expected byte to be accepted, got %d", n)
		}
	}
	e.Flush()
	if !bytes.Equal(e.Bytes(), whole) {
		t.Errorf("Expected %q, got %q", whole, e.Bytes())
	}
	if e.Consumed() != int64(len(in)) {
		t.Errorf("Expected %d consumed, got %d", len(in), e.Consumed())
	}
}

func TestEncoderLimit(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	in := make([]byte, 10000)
	rng.Read(in)

	const limit = 1000
	e := NewEncoder(limit)
	n := e.Write(in)
	if n >= len(in) {
		t.Fatalf("Expected the encoder to stop early, consumed %d", n)
	}
	if !e.Full() {
		t.Fatal("Expected encoder to report full")
	}
	if again := e.Write(in[n:]); again != 0 {
		t.Errorf("Expected a full encoder to refuse input, took %d", again)
	}
	e.Flush()
	if e.Len() > limit+2*(MinRun+1) {
		t.Errorf("Encoded block of %d bytes overshoots limit %d", e.Len(), limit)
	}

	back, err := Decode(nil, e.Bytes())
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if !bytes.Equal(back, in[:n]) {
		t.Error("Decoded block does not match consumed input")
	}

	e.Reset()
	if !e.Empty() || e.Len() != 0 {
		t.Error("Expected reset encoder to be empty")
	}
}
