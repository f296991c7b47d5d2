package bzip2

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"

	"github.com/KevoDB/kbz/pkg/index"
)

func TestReadBlockAt(t *testing.T) {
	data := textData(20, 420000)
	compressed, zw := compress(t, data, WithBlockSize(1))
	ix := zw.Index()

	if ix.Len() < 4 {
		t.Fatalf("Expected at least 4 blocks, got %d", ix.Len())
	}
	if err := ix.Validate(); err != nil {
		t.Fatalf("Writer produced an invalid index: %v", err)
	}

	ra := bytes.NewReader(compressed)
	for i, e := range ix.Entries {
		d, err := ReadBlockAt(ra, e.BitOffset, e.Factor)
		if err != nil {
			t.Fatalf("Block %d: %v", i, err)
		}
		if !d.Valid() {
			t.Errorf("Block %d: checksum mismatch", i)
		}
		if !bytes.Equal(d.Data, data[e.RawOffset:e.End()]) {
			t.Errorf("Block %d: data mismatch", i)
		}
	}

	// Block positions found while reading match those recorded while writing
	_, zr := decompress(t, compressed)
	if !reflect.DeepEqual(zr.Index().Entries, ix.Entries) {
		t.Errorf("Reader index differs from writer index")
	}
}

func TestReadBlockAtWrongOffset(t *testing.T) {
	compressed, zw := compress(t, textData(21, 30000))
	e := zw.Index().Entries[0]

	_, err := ReadBlockAt(bytes.NewReader(compressed), e.BitOffset+1, e.Factor)
	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("Expected *StructuralError, got %v", err)
	}
	if se.BitOffset < e.BitOffset {
		t.Errorf("Expected error offset past %d, got %d", e.BitOffset, se.BitOffset)
	}

	if _, err := ReadBlockAt(bytes.NewReader(compressed[:8]), e.BitOffset, e.Factor); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt for truncated data, got %v", err)
	}
}

func TestIndexedReader(t *testing.T) {
	data := textData(22, 330000)
	compressed, zw := compress(t, data, WithBlockSize(1))

	// The index survives a round trip through its encoding
	ix, err := index.Decode(zw.Index().Encode())
	if err != nil {
		t.Fatalf("Failed to decode index: %v", err)
	}

	ir := NewIndexedReader(bytes.NewReader(compressed), ix)
	if ir.Size() != int64(len(data)) {
		t.Fatalf("Expected size %d, got %d", len(data), ir.Size())
	}

	boundary := ix.Entries[1].RawOffset
	testCases := []struct {
		name   string
		offset int64
		length int
	}{
		{"start", 0, 100},
		{"across first boundary", boundary - 50, 100},
		{"whole second block", boundary, int(ix.Entries[1].RawSize)},
		{"tail", int64(len(data)) - 10, 10},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, tc.length)
			n, err := ir.ReadAt(buf, tc.offset)
			if err != nil {
				t.Fatalf("ReadAt failed: %v", err)
			}
			if n != tc.length || !bytes.Equal(buf, data[tc.offset:tc.offset+int64(tc.length)]) {
				t.Errorf("ReadAt returned wrong data")
			}
		})
	}

	buf := make([]byte, 20)
	n, err := ir.ReadAt(buf, int64(len(data))-5)
	if n != 5 || err != io.EOF {
		t.Errorf("Expected 5 bytes and io.EOF at the end, got %d, %v", n, err)
	}
	if _, err := ir.ReadAt(buf, -1); err == nil {
		t.Errorf("Expected error for a negative offset")
	}
}

func TestIndexedReaderConcurrent(t *testing.T) {
	data := textData(23, 250000)
	compressed, zw := compress(t, data, WithBlockSize(1))
	ir := NewIndexedReader(bytes.NewReader(compressed), zw.Index())

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			off := int64(g) * 30000
			buf := make([]byte, 1000)
			if _, err := ir.ReadAt(buf, off); err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(buf, data[off:off+1000]) {
				errs <- errors.New("data mismatch")
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestIndexedReaderChecksum(t *testing.T) {
	data := textData(24, 5000)
	compressed, zw := compress(t, data)

	bad := append([]byte(nil), compressed...)
	bad[10] ^= 0xff

	ir := NewIndexedReader(bytes.NewReader(bad), zw.Index())
	_, err := ir.ReadAt(make([]byte, 10), 0)
	if !errors.Is(err, ErrChecksum) {
		t.Errorf("Expected ErrChecksum, got %v", err)
	}
}
