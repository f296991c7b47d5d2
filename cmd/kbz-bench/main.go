// kbz-bench compares kbz against other codecs on generated or supplied corpora.
package main

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/KevoDB/kbz/pkg/stats"
)

var (
	corpusFlag = &cli.StringFlag{
		Name:  "corpus",
		Value: "all",
		Usage: "corpora to run (random, text, repetitive, @file, or all)",
	}
	sizeFlag = &cli.IntFlag{
		Name:  "size",
		Value: 8 << 20,
		Usage: "size of generated corpora in bytes",
	}
	codecsFlag = &cli.StringFlag{
		Name:  "codecs",
		Value: "all",
		Usage: "codecs to compare (kbz, dsnet, stdlib, zstd, snappy, or all)",
	}
	levelFlag = &cli.IntFlag{
		Name:  "level",
		Value: 9,
		Usage: "bzip2 block size digit",
	}
	workersFlag = &cli.IntFlag{
		Name:  "workers",
		Value: runtime.GOMAXPROCS(0),
		Usage: "largest kbz worker count; kbz runs at 1, 2, 4, ... up to it",
	}
	iterationsFlag = &cli.IntFlag{
		Name:  "iterations",
		Value: 3,
		Usage: "timed runs per codec and corpus",
	}
	cpuProfileFlag = &cli.StringFlag{
		Name:  "cpu-profile",
		Usage: "write CPU profile to file",
	}
	memProfileFlag = &cli.StringFlag{
		Name:  "mem-profile",
		Usage: "write memory profile to file",
	}
	resultsFlag = &cli.StringFlag{
		Name:  "results",
		Usage: "CSV file to write results to (in addition to stdout)",
	}
)

var app = &cli.App{
	Name:  "kbz-bench",
	Usage: "compare kbz with other compressors",
	Flags: []cli.Flag{
		corpusFlag,
		sizeFlag,
		codecsFlag,
		levelFlag,
		workersFlag,
		iterationsFlag,
		cpuProfileFlag,
		memProfileFlag,
		resultsFlag,
	},
	Action: benchAction,
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func benchAction(c *cli.Context) error {
	if path := c.String(cpuProfileFlag.Name); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	corpora, err := loadCorpora(c.String(corpusFlag.Name), c.Int(sizeFlag.Name))
	if err != nil {
		return err
	}

	collector := stats.NewAtomicCollector()
	codecs, err := newCodecs(c.String(codecsFlag.Name), c.Int(levelFlag.Name), c.Int(workersFlag.Name), collector)
	if err != nil {
		return err
	}
	defer closeCodecs(codecs)

	out := c.App.Writer
	fmt.Fprintf(out, "Benchmark Report (%s)\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(out, "Level: %d, Iterations: %d, GOMAXPROCS: %d\n",
		c.Int(levelFlag.Name), c.Int(iterationsFlag.Name), runtime.GOMAXPROCS(0))

	var results []BenchmarkResult
	for _, corpus := range corpora {
		for _, codec := range codecs {
			fmt.Fprintf(out, "Running %s on %s (%d bytes)...\n", codec.Name(), corpus.Name, len(corpus.Data))
			r, err := runBenchmark(codec, corpus, c.Int(iterationsFlag.Name))
			if err != nil {
				return fmt.Errorf("%s on %s: %w", codec.Name(), corpus.Name, err)
			}
			results = append(results, r)
		}
	}

	PrintResultTable(out, results)
	fmt.Fprintf(out, "kbz blocks: %d compressed, %d decompressed, sort paths: %v\n",
		collector.Count(stats.OpCompressBlock),
		collector.Count(stats.OpDecompressBlock),
		collector.GetStatsFiltered("sort_"))

	if path := c.String(resultsFlag.Name); path != "" {
		if err := SaveResultCSV(results, path); err != nil {
			return fmt.Errorf("failed to write results to file: %w", err)
		}
	}

	if path := c.String(memProfileFlag.Name); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("could not create memory profile: %w", err)
		}
		defer f.Close()
		runtime.GC() // Run GC before taking memory profile
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("could not write memory profile: %w", err)
		}
	}
	return nil
}

// runBenchmark times iterations round trips of corpus through codec and checks
// that each one reproduces the input.
func runBenchmark(codec Codec, corpus Corpus, iterations int) (BenchmarkResult, error) {
	if iterations < 1 {
		iterations = 1
	}

	var compressed []byte
	var compressTime, decompressTime time.Duration
	for i := 0; i < iterations; i++ {
		start := time.Now()
		out, err := codec.Compress(corpus.Data)
		if err != nil {
			return BenchmarkResult{}, fmt.Errorf("compress: %w", err)
		}
		compressTime += time.Since(start)
		compressed = out

		start = time.Now()
		back, err := codec.Decompress(compressed)
		if err != nil {
			return BenchmarkResult{}, fmt.Errorf("decompress: %w", err)
		}
		decompressTime += time.Since(start)

		if !bytes.Equal(back, corpus.Data) {
			return BenchmarkResult{}, fmt.Errorf("round trip differs from input")
		}
	}

	return BenchmarkResult{
		Codec:          codec.Name(),
		Corpus:         corpus.Name,
		Size:           len(corpus.Data),
		CompressedSize: len(compressed),
		Iterations:     iterations,
		CompressTime:   compressTime.Seconds() / float64(iterations),
		DecompressTime: decompressTime.Seconds() / float64(iterations),
		Timestamp:      time.Now(),
	}, nil
}
