package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/KevoDB/kbz/pkg/stats"
)

func TestGenerate(t *testing.T) {
	for _, name := range corpusNames {
		t.Run(name, func(t *testing.T) {
			a, err := generate(name, 10000)
			if err != nil {
				t.Fatalf("Failed to generate: %v", err)
			}
			if len(a.Data) != 10000 {
				t.Errorf("Expected 10000 bytes, got %d", len(a.Data))
			}
			b, _ := generate(name, 10000)
			if !bytes.Equal(a.Data, b.Data) {
				t.Errorf("Expected generation to be deterministic")
			}
		})
	}

	if _, err := generate("lorem", 10); err == nil {
		t.Errorf("Expected error for unknown corpus")
	}
}

func TestWorkerCounts(t *testing.T) {
	tests := []struct {
		max  int
		want []int
	}{
		{0, []int{1}},
		{1, []int{1}},
		{4, []int{1, 2, 4}},
		{6, []int{1, 2, 4, 6}},
	}
	for _, tt := range tests {
		if got := workerCounts(tt.max); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("workerCounts(%d): expected %v, got %v", tt.max, tt.want, got)
		}
	}
}

func TestCodecsRoundTrip(t *testing.T) {
	corpus, err := generate("text", 200000)
	if err != nil {
		t.Fatalf("Failed to generate: %v", err)
	}

	collector := stats.NewAtomicCollector()
	codecs, err := newCodecs("all", 1, 2, collector)
	if err != nil {
		t.Fatalf("Failed to create codecs: %v", err)
	}
	defer closeCodecs(codecs)

	var names []string
	for _, codec := range codecs {
		names = append(names, codec.Name())
		t.Run(codec.Name(), func(t *testing.T) {
			r, err := runBenchmark(codec, corpus, 1)
			if err != nil {
				t.Fatalf("Benchmark failed: %v", err)
			}
			if r.CompressedSize == 0 || r.CompressedSize >= r.Size {
				t.Errorf("Expected text to compress, got %d bytes from %d", r.CompressedSize, r.Size)
			}
		})
	}

	want := []string{"kbz-j1", "kbz-j2", "dsnet", "stdlib", "zstd", "snappy"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Expected codecs %v, got %v", want, names)
	}
	if collector.Count(stats.OpCompressBlock) == 0 {
		t.Errorf("Expected kbz blocks to be counted")
	}

	if _, err := newCodecs("lz4", 9, 1, collector); !errors.Is(err, ErrUnknownCodec) {
		t.Errorf("Expected ErrUnknownCodec, got %v", err)
	}
}

func TestResultCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.csv")
	now := time.Now().Truncate(time.Second)
	results := []BenchmarkResult{
		{Codec: "kbz-j4", Corpus: "text", Size: 1 << 20, CompressedSize: 1 << 18, Iterations: 3,
			CompressTime: 0.25, DecompressTime: 0.125, Timestamp: now},
		{Codec: "zstd", Corpus: "random", Size: 1000, CompressedSize: 1010, Iterations: 1,
			CompressTime: 0.001, DecompressTime: 0.0005, Timestamp: now},
	}

	if err := SaveResultCSV(results, path); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	loaded, err := LoadResultCSV(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if len(loaded) != len(results) {
		t.Fatalf("Expected %d results, got %d", len(results), len(loaded))
	}
	for i := range results {
		if loaded[i].Codec != results[i].Codec || loaded[i].Size != results[i].Size ||
			loaded[i].CompressedSize != results[i].CompressedSize || !loaded[i].Timestamp.Equal(now) {
			t.Errorf("Result %d differs: %+v", i, loaded[i])
		}
	}
	if loaded[0].Ratio() != 4 {
		t.Errorf("Expected ratio 4, got %f", loaded[0].Ratio())
	}
	if loaded[0].CompressMBps() != 4 {
		t.Errorf("Expected 4 MiB/s, got %f", loaded[0].CompressMBps())
	}

	var buf bytes.Buffer
	PrintResultTable(&buf, loaded)
	if !strings.Contains(buf.String(), "kbz-j4") || !strings.Contains(buf.String(), "MiB/s") {
		t.Errorf("Expected table rows, got:\n%s", buf.String())
	}
}
