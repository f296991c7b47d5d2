package block

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/KevoDB/kbz/pkg/bitstream"
	"github.com/KevoDB/kbz/pkg/bwt"
	"github.com/KevoDB/kbz/pkg/crc"
	"github.com/KevoDB/kbz/pkg/rle"
)

func encodeBlock(t *testing.T, raw []byte) ([]byte, Info) {
	t.Helper()
	b := &Block{
		Data:    rle.Encode(nil, raw),
		CRC:     crc.Checksum(raw),
		RawSize: int64(len(raw)),
	}
	w := bitstream.NewBuffer(len(raw))
	info, err := Encode(w, b, Options{WorkFactor: bwt.DefaultWorkFactor, Parallelism: 4})
	if err != nil {
		t.Fatalf("Failed to encode block: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}
	data, _, err := w.BitString()
	if err != nil {
		t.Fatalf("Failed to collect block bits: %v", err)
	}
	return data, info
}

func decodeBlock(data []byte, factor int) (*Decoded, error) {
	r := bitstream.NewReader(bytes.NewReader(data))
	magic, err := r.ReadUint48()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, errors.New("bad magic")
	}
	return Decode(r, factor)
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	random := make([]byte, 150000)
	rng.Read(random)

	tests := []struct {
		name string
		raw  []byte
	}{
		{"single byte", []byte{0}},
		{"hello", []byte("hello")},
		{"goofy", []byte("Goofy test")},
		{"long run", bytes.Repeat([]byte{'z'}, 100000)},
		{"all byte values", func() []byte {
			b := make([]byte, 256*4)
			for i := range b {
				b[i] = byte(i)
			}
			return b
		}()},
		{"text", bytes.Repeat([]byte("It was the best of times, it was the worst of times. "), 2000)},
		{"random", random},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, info := encodeBlock(t, tt.raw)
			if info.Bits == 0 || info.Bits > uint64(len(data))*8 {
				t.Fatalf("Expected between 1 and %d bits, got %d", len(data)*8, info.Bits)
			}

			dec, err := decodeBlock(data, MaxFactor)
			if err != nil {
				t.Fatalf("Failed to decode block: %v", err)
			}
			if !bytes.Equal(dec.Data, tt.raw) {
				t.Fatal("Decoded data does not match")
			}
			if !dec.Valid() {
				t.Errorf("Expected matching CRCs, stored %08x computed %08x", dec.CRC, dec.Computed)
			}
			if dec.Key != info.Key {
				t.Errorf("Expected key %d, got %d", info.Key, dec.Key)
			}
			if dec.Tables != info.Tables {
				t.Errorf("Expected %d tables, got %d", info.Tables, dec.Tables)
			}
		})
	}
}

func TestEncodeRejectsEmpty(t *testing.T) {
	w := bitstream.NewBuffer(0)
	if _, err := Encode(w, &Block{}, Options{}); !errors.Is(err, ErrEmptyBlock) {
		t.Errorf("Expected ErrEmptyBlock, got %v", err)
	}
}

func TestEncodeRespectsFactor(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	data := make([]byte, Capacity(1)+1)
	for i := range data {
		data[i] = byte('a' + rng.Intn(8))
	}
	b := &Block{Data: data, CRC: crc.Checksum(data), RawSize: int64(len(data))}

	tests := []struct {
		name   string
		factor int
		want   error
	}{
		{"overruns factor 1", 1, ErrTooLarge},
		{"fits factor 2", 2, nil},
		{"zero means largest", 0, nil},
		{"factor out of range", 10, ErrFactor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := bitstream.NewBuffer(len(data))
			_, err := Encode(w, b, Options{Factor: tt.factor, WorkFactor: bwt.DefaultWorkFactor, Parallelism: 1})
			if tt.want == nil && err != nil {
				t.Fatalf("Expected success, got %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if tt.want != nil && w.BitsWritten() != 0 {
				t.Errorf("Expected nothing written, got %d bits", w.BitsWritten())
			}
		})
	}
}

func TestSymbolMap(t *testing.T) {
	var used [256]bool
	for _, b := range []byte{0, 15, 16, 'a', 'z', 255} {
		used[b] = true
	}

	w := bitstream.NewBuffer(64)
	if n := writeSymbolMap(w, &used); n != 6 {
		t.Errorf("Expected 6 symbols in use, got %d", n)
	}
	// Ranges 0, 1, 6, 7 and 15 are present
	if bits := w.BitsWritten(); bits != 16*6 {
		t.Errorf("Expected 96 bits, got %d", bits)
	}
	w.Flush()
	data, _, _ := w.BitString()

	got, err := readSymbolMap(bitstream.NewReader(bytes.NewReader(data)))
	if err != nil {
		t.Fatalf("Failed to read symbol map: %v", err)
	}
	if got != used {
		t.Error("Symbol map mismatch")
	}

	empty := []byte{0, 0}
	if _, err := readSymbolMap(bitstream.NewReader(bytes.NewReader(empty))); !errors.Is(err, ErrSymbolMap) {
		t.Errorf("Expected ErrSymbolMap, got %v", err)
	}
}

// header builds the fields following the block magic.
func header(randomized uint32, key uint32) []byte {
	w := bitstream.NewBuffer(16)
	w.WriteUint48(Magic)
	w.WriteUint32(0)
	w.WriteBit(randomized)
	w.WriteUint24(key)
	w.WriteUint16(0x8000)
	w.WriteUint16(0xffff)
	w.WriteBits(0, 32)
	w.Flush()
	data, _, _ := w.BitString()
	return data
}

func TestDecodeRejectsCorruptHeaders(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		factor int
		err    error
	}{
		{"randomized", header(1, 0), 9, ErrRandomized},
		{"key past capacity", header(0, 100000), 1, ErrKeyRange},
		{"bad factor", header(0, 0), 0, ErrFactor},
		{"truncated", header(0, 0)[:8], 9, bitstream.ErrNoMoreData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeBlock(tt.data, tt.factor); !errors.Is(err, tt.err) {
				t.Errorf("Expected %v, got %v", tt.err, err)
			}
		})
	}
}

func TestCorruptPayloadNeverPanics(t *testing.T) {
	raw := bytes.Repeat([]byte("corruption test payload "), 200)
	data, _ := encodeBlock(t, raw)

	rng := rand.New(rand.NewSource(12))
	for i := 0; i < 200; i++ {
		bad := append([]byte(nil), data...)
		pos := 16 + rng.Intn(len(bad)-16)
		bad[pos] ^= byte(1 << rng.Intn(8))

		dec, err := decodeBlock(bad, MaxFactor)
		if err == nil && bytes.Equal(dec.Data, raw) && !dec.Valid() {
			t.Fatal("Expected identical data to carry a valid CRC")
		}
	}
}

func TestCapacity(t *testing.T) {
	if got := FillLimit(9); got != 899981 {
		t.Errorf("Expected fill limit 899981, got %d", got)
	}
	for _, f := range []int{0, 10, -1} {
		if ValidFactor(f) {
			t.Errorf("Expected factor %d to be invalid", f)
		}
	}
}
