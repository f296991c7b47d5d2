package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// BenchmarkResult stores the results of a benchmark
type BenchmarkResult struct {
	Codec          string
	Corpus         string
	Size           int
	CompressedSize int
	Iterations     int
	CompressTime   float64 // Mean seconds per compression
	DecompressTime float64 // Mean seconds per decompression
	Timestamp      time.Time
}

// Ratio is the input size over the compressed size.
func (r BenchmarkResult) Ratio() float64 {
	if r.CompressedSize == 0 {
		return 0
	}
	return float64(r.Size) / float64(r.CompressedSize)
}

// BitsPerByte is the compressed size in bits per input byte.
func (r BenchmarkResult) BitsPerByte() float64 {
	if r.Size == 0 {
		return 0
	}
	return 8 * float64(r.CompressedSize) / float64(r.Size)
}

func throughput(size int, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return float64(size) / seconds / (1 << 20)
}

// CompressMBps is the compression throughput in MiB/s of input.
func (r BenchmarkResult) CompressMBps() float64 {
	return throughput(r.Size, r.CompressTime)
}

// DecompressMBps is the decompression throughput in MiB/s of output.
func (r BenchmarkResult) DecompressMBps() float64 {
	return throughput(r.Size, r.DecompressTime)
}

var csvHeader = []string{
	"Timestamp", "Codec", "Corpus", "Size", "CompressedSize", "Iterations",
	"CompressTime", "DecompressTime", "Ratio", "BitsPerByte", "CompressMBps", "DecompressMBps",
}

// SaveResultCSV saves benchmark results to a CSV file
func SaveResultCSV(results []BenchmarkResult, filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range results {
		record := []string{
			r.Timestamp.Format(time.RFC3339),
			r.Codec,
			r.Corpus,
			strconv.Itoa(r.Size),
			strconv.Itoa(r.CompressedSize),
			strconv.Itoa(r.Iterations),
			fmt.Sprintf("%.6f", r.CompressTime),
			fmt.Sprintf("%.6f", r.DecompressTime),
			fmt.Sprintf("%.3f", r.Ratio()),
			fmt.Sprintf("%.3f", r.BitsPerByte()),
			fmt.Sprintf("%.2f", r.CompressMBps()),
			fmt.Sprintf("%.2f", r.DecompressMBps()),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// LoadResultCSV loads benchmark results from a CSV file. Derived columns are
// recomputed rather than read back.
func LoadResultCSV(filename string) ([]BenchmarkResult, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	// Skip header
	if len(records) <= 1 {
		return []BenchmarkResult{}, nil
	}
	records = records[1:]

	results := make([]BenchmarkResult, 0, len(records))
	for _, record := range records {
		if len(record) < 8 {
			continue
		}

		timestamp, _ := time.Parse(time.RFC3339, record[0])
		size, _ := strconv.Atoi(record[3])
		compressedSize, _ := strconv.Atoi(record[4])
		iterations, _ := strconv.Atoi(record[5])
		compressTime, _ := strconv.ParseFloat(record[6], 64)
		decompressTime, _ := strconv.ParseFloat(record[7], 64)

		results = append(results, BenchmarkResult{
			Timestamp:      timestamp,
			Codec:          record[1],
			Corpus:         record[2],
			Size:           size,
			CompressedSize: compressedSize,
			Iterations:     iterations,
			CompressTime:   compressTime,
			DecompressTime: decompressTime,
		})
	}

	return results, nil
}

// PrintResultTable prints a formatted table of benchmark results
func PrintResultTable(w io.Writer, results []BenchmarkResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results to display")
		return
	}

	fmt.Fprintln(w, "+------------+------------+-----------+--------+-----------+--------------+--------------+")
	fmt.Fprintln(w, "| Codec      | Corpus     | Size      | Ratio  | Bits/Byte | Compress     | Decompress   |")
	fmt.Fprintln(w, "+------------+------------+-----------+--------+-----------+--------------+--------------+")

	for _, r := range results {
		fmt.Fprintf(w, "| %-10s | %-10.10s | %9d | %6.3f | %9.3f | %7.2f MiB/s | %7.2f MiB/s |\n",
			r.Codec,
			r.Corpus,
			r.Size,
			r.Ratio(),
			r.BitsPerByte(),
			r.CompressMBps(),
			r.DecompressMBps())
	}
	fmt.Fprintln(w, "+------------+------------+-----------+--------+-----------+--------------+--------------+")
}
