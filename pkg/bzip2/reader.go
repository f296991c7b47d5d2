package bzip2

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/KevoDB/kbz/pkg/bitstream"
	"github.com/KevoDB/kbz/pkg/block"
	"github.com/KevoDB/kbz/pkg/common/log"
	"github.com/KevoDB/kbz/pkg/crc"
	"github.com/KevoDB/kbz/pkg/index"
	"github.com/KevoDB/kbz/pkg/stats"
	"github.com/KevoDB/kbz/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Reader decompresses a bzip2 file, which may hold several concatenated streams.
type Reader struct {
	ctx     context.Context
	opts    options
	metrics CodecMetrics
	logger  log.Logger
	br      *bitstream.Reader

	factor    int
	inStream  bool
	streams   int
	blocks    int
	streamCRC uint32

	data []byte
	pos  int

	rawOffset  int64
	index      index.Index
	mismatches []Mismatch

	started time.Time
	err     error
}

// NewReader returns a Reader decompressing r.
func NewReader(r io.Reader, opts ...Option) (*Reader, error) {
	return NewReaderContext(context.Background(), r, opts...)
}

// NewReaderContext returns a Reader that stops with ctx's error once ctx is
// cancelled.
func NewReaderContext(ctx context.Context, r io.Reader, opts ...Option) (*Reader, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	return &Reader{
		ctx:     ctx,
		opts:    o,
		metrics: NewCodecMetrics(o.telemetry),
		logger:  o.logger.WithField("component", telemetry.ComponentReader),
		br:      bitstream.NewReaderSize(r, o.readBufferSize),
		started: time.Now(),
	}, nil
}

// Read decompresses into p.
func (zr *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for zr.pos == len(zr.data) {
		if zr.err != nil {
			return 0, zr.err
		}
		if err := zr.next(); err != nil {
			zr.finish(err)
			return 0, zr.err
		}
	}

	n := copy(p, zr.data[zr.pos:])
	zr.pos += n
	return n, nil
}

// next advances to the next block, crossing stream boundaries as needed.
func (zr *Reader) next() error {
	if err := zr.ctx.Err(); err != nil {
		return err
	}

	if !zr.inStream {
		if zr.streams > 0 && zr.br.AtEOF() {
			return io.EOF
		}
		factor, err := readStreamHeader(zr.br)
		if err != nil {
			return err
		}
		zr.factor = factor
		zr.inStream = true
		zr.streamCRC = 0
		zr.streams++
	}

	bitOffset := zr.br.BitsRead()
	magic, err := zr.br.ReadUint48()
	if err != nil {
		return classify(zr.br, "reading block magic", err)
	}

	switch magic {
	case block.Magic:
		return zr.readBlock(bitOffset)
	case FooterMagic:
		return zr.readFooter()
	default:
		return corrupt(zr.br, fmt.Sprintf("bad block magic %012x", magic), nil)
	}
}

func (zr *Reader) readBlock(bitOffset uint64) error {
	ctx, span := zr.opts.telemetry.StartSpan(zr.ctx, "kbz.block.decode",
		attribute.Int(telemetry.AttrBlockSeq, zr.blocks),
		attribute.Int(telemetry.AttrBlockSize, zr.factor),
	)
	defer span.End()

	start := time.Now()
	d, err := block.Decode(zr.br, zr.factor)
	if err != nil {
		span.RecordError(err)
		return classify(zr.br, fmt.Sprintf("block %d", zr.blocks), err)
	}
	duration := time.Since(start)

	zr.metrics.RecordBlockDecode(ctx, duration, d)
	zr.opts.stats.TrackOperationWithLatency(stats.OpDecompressBlock, uint64(duration.Nanoseconds()))
	zr.logger.WithField("seq", zr.blocks).Debug("block crc=%08x raw=%d tables=%d", d.CRC, len(d.Data), d.Tables)

	if !d.Valid() {
		if err := zr.mismatch(Mismatch{Block: zr.blocks, Stream: zr.streams - 1, Stored: d.CRC, Computed: d.Computed}); err != nil {
			return err
		}
	}

	zr.streamCRC = crc.Fold(zr.streamCRC, d.Computed)
	zr.index.Add(index.Entry{
		BitOffset: bitOffset,
		RawOffset: zr.rawOffset,
		RawSize:   int64(len(d.Data)),
		CRC:       d.CRC,
		Factor:    zr.factor,
	})
	zr.rawOffset += int64(len(d.Data))
	zr.blocks++
	zr.data, zr.pos = d.Data, 0
	return nil
}

func (zr *Reader) readFooter() error {
	stored, err := zr.br.ReadUint32()
	if err != nil {
		return classify(zr.br, "reading stream checksum", err)
	}
	if stored != zr.streamCRC {
		if err := zr.mismatch(Mismatch{Block: -1, Stream: zr.streams - 1, Stored: stored, Computed: zr.streamCRC}); err != nil {
			return err
		}
	}
	zr.br.Align()
	zr.inStream = false
	return nil
}

// mismatch records a checksum failure. Under strict checking it is returned as an
// error; otherwise the data is delivered and the failure is reported by Verify.
func (zr *Reader) mismatch(m Mismatch) error {
	kind := "block"
	if m.Block < 0 {
		kind = "stream"
	}
	zr.mismatches = append(zr.mismatches, m)
	zr.opts.stats.TrackChecksumFailure(m.Block < 0)
	zr.metrics.RecordChecksumFailure(zr.ctx, kind)

	if zr.opts.strict {
		return &ChecksumError{Mismatches: []Mismatch{m}}
	}
	zr.logger.Warn("%s checksum mismatch: %s", kind, m)
	return nil
}

// finish records the outcome of the stream once reading stops.
func (zr *Reader) finish(err error) {
	zr.err = err
	raw, packed := zr.rawOffset, int64(zr.br.BitsRead()/8)
	duration := time.Since(zr.started)

	if err == io.EOF {
		zr.metrics.RecordStream(zr.ctx, telemetry.OpTypeDecompress, duration, raw, packed, nil)
		zr.opts.stats.TrackOperationWithLatency(stats.OpDecompressStream, uint64(duration.Nanoseconds()))
		zr.opts.stats.TrackBytes(uint64(raw), uint64(packed))
		zr.logger.Info("decompressed %d bytes from %d in %d blocks and %d streams", raw, packed, zr.blocks, zr.streams)
		return
	}

	zr.metrics.RecordStream(zr.ctx, telemetry.OpTypeDecompress, duration, raw, packed, err)
	zr.opts.stats.TrackError("decompress")
}

// Verify returns a *ChecksumError listing every checksum mismatch seen so far, or
// nil. Call it after Read has returned io.EOF to check the whole file.
func (zr *Reader) Verify() error {
	if len(zr.mismatches) == 0 {
		return nil
	}
	return &ChecksumError{Mismatches: append([]Mismatch(nil), zr.mismatches...)}
}

// Index returns the positions of the blocks read so far.
func (zr *Reader) Index() *index.Index {
	return &zr.index
}

// Streams returns the number of streams started.
func (zr *Reader) Streams() int {
	return zr.streams
}

// Blocks returns the number of blocks decoded.
func (zr *Reader) Blocks() int {
	return zr.blocks
}

// BytesIn returns the number of compressed bytes consumed.
func (zr *Reader) BytesIn() int64 {
	return int64(zr.br.BitsRead() / 8)
}

// Stats returns the reader's statistics collector.
func (zr *Reader) Stats() stats.Collector {
	return zr.opts.stats
}
