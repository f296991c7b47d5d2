package main

import (
	"bytes"
	stdbzip2 "compress/bzip2"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	dsbzip2 "github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/KevoDB/kbz/pkg/bzip2"
	"github.com/KevoDB/kbz/pkg/common/log"
	"github.com/KevoDB/kbz/pkg/stats"
)

var (
	// ErrUnknownCodec is returned when an unsupported codec is named
	ErrUnknownCodec = errors.New("unknown codec")

	// ErrInvalidCompressedData is returned when compressed data cannot be decompressed
	ErrInvalidCompressedData = errors.New("invalid compressed data")
)

// Codec compresses and decompresses whole buffers.
type Codec interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// kbzCodec runs this module's codec with a fixed worker count.
type kbzCodec struct {
	level   int
	workers int
	stats   *stats.AtomicCollector
}

func (c *kbzCodec) Name() string {
	return fmt.Sprintf("kbz-j%d", c.workers)
}

func (c *kbzCodec) options() []bzip2.Option {
	return []bzip2.Option{
		bzip2.WithBlockSize(c.level),
		bzip2.WithWorkers(c.workers),
		bzip2.WithLogger(log.Discard()),
		bzip2.WithStats(c.stats),
	}
}

func (c *kbzCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := bzip2.NewWriter(&buf, c.options()...)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *kbzCodec) Decompress(data []byte) ([]byte, error) {
	zr, err := bzip2.NewReader(bytes.NewReader(data), append(c.options(), bzip2.WithStrictChecksums(true))...)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(zr)
}

// dsnetCodec is the pure Go bzip2 implementation from github.com/dsnet/compress.
type dsnetCodec struct {
	level int
}

func (c *dsnetCodec) Name() string {
	return "dsnet"
}

func (c *dsnetCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := dsbzip2.NewWriter(&buf, &dsbzip2.WriterConfig{Level: c.level})
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *dsnetCodec) Decompress(data []byte) ([]byte, error) {
	zr, err := dsbzip2.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// stdlibCodec decodes with compress/bzip2, which has no encoder; compression is
// done by kbz with every worker so the decode numbers are comparable.
type stdlibCodec struct {
	encoder *kbzCodec
}

func (c *stdlibCodec) Name() string {
	return "stdlib"
}

func (c *stdlibCodec) Compress(data []byte) ([]byte, error) {
	return c.encoder.Compress(data)
}

func (c *stdlibCodec) Decompress(data []byte) ([]byte, error) {
	return io.ReadAll(stdbzip2.NewReader(bytes.NewReader(data)))
}

// zstdCodec and snappyCodec are the general purpose baselines.
type zstdCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder

	// Mutex to protect encoder/decoder access
	mu sync.Mutex
}

func newZstdCodec() (*zstdCodec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, fmt.Errorf("failed to create ZSTD encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create ZSTD decoder: %w", err)
	}

	return &zstdCodec{encoder: encoder, decoder: decoder}, nil
}

func (c *zstdCodec) Name() string {
	return "zstd"
}

func (c *zstdCodec) Compress(data []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encoder.EncodeAll(data, nil), nil
}

func (c *zstdCodec) Decompress(data []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCompressedData, err)
	}
	return result, nil
}

// Close releases the encoder and decoder.
func (c *zstdCodec) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.encoder != nil {
		c.encoder.Close()
		c.encoder = nil
	}
	if c.decoder != nil {
		c.decoder.Close()
		c.decoder = nil
	}
	return nil
}

type snappyCodec struct{}

func (snappyCodec) Name() string {
	return "snappy"
}

func (snappyCodec) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCodec) Decompress(data []byte) ([]byte, error) {
	result, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCompressedData, err)
	}
	return result, nil
}

// codecNames lists the names accepted by newCodecs.
var codecNames = []string{"kbz", "dsnet", "stdlib", "zstd", "snappy"}

// newCodecs builds the named codecs. "kbz" expands to one codec per worker count,
// doubling from 1 up to maxWorkers.
func newCodecs(list string, level, maxWorkers int, collector *stats.AtomicCollector) ([]Codec, error) {
	names := strings.Split(list, ",")
	if list == "all" {
		names = codecNames
	}

	var codecs []Codec
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "kbz":
			for _, w := range workerCounts(maxWorkers) {
				codecs = append(codecs, &kbzCodec{level: level, workers: w, stats: collector})
			}
		case "dsnet":
			codecs = append(codecs, &dsnetCodec{level: level})
		case "stdlib":
			codecs = append(codecs, &stdlibCodec{encoder: &kbzCodec{level: level, workers: maxWorkers, stats: stats.NewAtomicCollector()}})
		case "zstd":
			zc, err := newZstdCodec()
			if err != nil {
				return nil, err
			}
			codecs = append(codecs, zc)
		case "snappy":
			codecs = append(codecs, snappyCodec{})
		default:
			return nil, fmt.Errorf("%w: %s (known: %s)", ErrUnknownCodec, name, strings.Join(codecNames, ", "))
		}
	}
	return codecs, nil
}

// workerCounts returns 1, 2, 4, ... up to and including max.
func workerCounts(max int) []int {
	if max < 1 {
		max = 1
	}
	var counts []int
	for w := 1; w < max; w *= 2 {
		counts = append(counts, w)
	}
	counts = append(counts, max)
	return counts
}

// closeCodecs releases codecs holding resources.
func closeCodecs(codecs []Codec) {
	for _, c := range codecs {
		if cl, ok := c.(io.Closer); ok {
			cl.Close()
		}
	}
}
