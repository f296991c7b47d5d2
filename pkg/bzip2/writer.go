package bzip2

import (
	"context"
	"io"
	"runtime"
	"time"

	"github.com/KevoDB/kbz/pkg/bitstream"
	"github.com/KevoDB/kbz/pkg/block"
	"github.com/KevoDB/kbz/pkg/common/log"
	"github.com/KevoDB/kbz/pkg/crc"
	"github.com/KevoDB/kbz/pkg/index"
	"github.com/KevoDB/kbz/pkg/pipeline"
	"github.com/KevoDB/kbz/pkg/rle"
	"github.com/KevoDB/kbz/pkg/stats"
	"github.com/KevoDB/kbz/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// encodedBlock is a compressed block waiting for its turn in the output.
type encodedBlock struct {
	info      block.Info
	bits      []byte
	nbits     uint64
	rawOffset int64
	rawSize   int64
}

// Writer compresses data written to it into a single bzip2 stream. Blocks are
// compressed on a pool of workers while the caller keeps writing.
//
// A Writer is not safe for concurrent use. Close must be called to flush the last
// block and the stream footer; it does not close the underlying writer.
type Writer struct {
	ctx     context.Context
	opts    options
	metrics CodecMetrics
	logger  log.Logger
	bw      *bitstream.Writer
	pool    *pipeline.Pool[*block.Block, *encodedBlock]

	enc       *rle.Encoder
	blockCRC  uint32
	rawOffset int64

	// Owned by the pool's consumer until Close returns
	streamCRC uint32
	index     index.Index

	started time.Time
	closed  bool
	err     error
}

// NewWriter returns a Writer compressing to w.
func NewWriter(w io.Writer, opts ...Option) (*Writer, error) {
	return NewWriterContext(context.Background(), w, opts...)
}

// NewWriterContext returns a Writer whose workers stop when ctx is cancelled.
func NewWriterContext(ctx context.Context, w io.Writer, opts ...Option) (*Writer, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	zw := &Writer{
		ctx:     ctx,
		opts:    o,
		metrics: NewCodecMetrics(o.telemetry),
		logger:  o.logger.WithField("component", telemetry.ComponentWriter),
		bw:      bitstream.NewWriter(w),
		enc:     rle.NewEncoder(block.FillLimit(o.blockSize)),
		started: time.Now(),
	}
	writeStreamHeader(zw.bw, o.blockSize)
	zw.pool = pipeline.NewPool(ctx, o.workers, zw.encodeBlock, zw.emitBlock)

	return zw, nil
}

// Write compresses p. Full blocks are handed to the workers as they fill.
func (zw *Writer) Write(p []byte) (int, error) {
	if zw.closed {
		return 0, ErrClosed
	}
	if zw.err != nil {
		return 0, zw.err
	}

	total := 0
	for len(p) > 0 {
		n := zw.enc.Write(p)
		zw.blockCRC = crc.Update(zw.blockCRC, p[:n])
		total += n
		p = p[n:]

		if zw.enc.Full() {
			if err := zw.submit(); err != nil {
				zw.err = internal(err)
				return total, zw.err
			}
		}
	}
	return total, nil
}

// submit hands the block being filled to the pool and starts a new one.
func (zw *Writer) submit() error {
	zw.enc.Flush()
	b := &block.Block{
		Seq:       zw.pool.Submitted(),
		Data:      zw.enc.Bytes(),
		CRC:       zw.blockCRC,
		RawOffset: zw.rawOffset,
		RawSize:   zw.enc.Consumed(),
	}

	zw.rawOffset += b.RawSize
	zw.blockCRC = 0
	zw.enc = rle.NewEncoder(block.FillLimit(zw.opts.blockSize))

	return zw.pool.Submit(b)
}

// encodeBlock runs on a worker.
func (zw *Writer) encodeBlock(ctx context.Context, seq uint64, b *block.Block) (*encodedBlock, error) {
	ctx, span := zw.opts.telemetry.StartSpan(ctx, "kbz.block.encode",
		attribute.Int64(telemetry.AttrBlockSeq, int64(seq)),
		attribute.Int(telemetry.AttrBlockSize, zw.opts.blockSize),
	)
	defer span.End()

	start := time.Now()
	buf := bitstream.NewBuffer(len(b.Data)/2 + 64)
	info, err := block.Encode(buf, b, block.Options{
		Factor:      zw.opts.blockSize,
		WorkFactor:  zw.opts.workFactor,
		Iterations:  zw.opts.iterations,
		Parallelism: max(1, runtime.GOMAXPROCS(0)/zw.opts.workers),
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	bits, nbits, err := buf.BitString()
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)
	zw.metrics.RecordBlockEncode(ctx, duration, b.RawSize, info)
	zw.opts.stats.TrackOperationWithLatency(stats.OpCompressBlock, uint64(duration.Nanoseconds()))
	zw.opts.stats.TrackSortPath(info.Path.String())
	if info.BudgetExhausted {
		zw.logger.WithField("seq", seq).Debug("sort budget exhausted after %s, used fallback sort", info.SortDuration)
	}

	return &encodedBlock{
		info:      info,
		bits:      bits,
		nbits:     nbits,
		rawOffset: b.RawOffset,
		rawSize:   b.RawSize,
	}, nil
}

// emitBlock runs on the pool's consumer, in block order.
func (zw *Writer) emitBlock(seq uint64, eb *encodedBlock) error {
	zw.index.Add(index.Entry{
		BitOffset: zw.bw.BitsWritten(),
		RawOffset: eb.rawOffset,
		RawSize:   eb.rawSize,
		CRC:       eb.info.CRC,
		Factor:    zw.opts.blockSize,
	})
	zw.bw.WriteBitString(eb.bits, eb.nbits)
	zw.streamCRC = crc.Fold(zw.streamCRC, eb.info.CRC)

	zw.logger.WithField("seq", seq).Debug("block crc=%08x raw=%d bits=%d tables=%d sort=%s",
		eb.info.CRC, eb.rawSize, eb.nbits, eb.info.Tables, eb.info.Path)
	return zw.bw.Err()
}

// Close compresses any buffered data, waits for the workers and writes the stream
// footer. It is safe to call more than once.
func (zw *Writer) Close() error {
	if zw.closed {
		return zw.err
	}
	zw.closed = true

	if zw.err == nil && !zw.enc.Empty() {
		zw.err = zw.submit()
	}
	if err := zw.pool.Wait(); err != nil && zw.err == nil {
		zw.err = err
	}
	if zw.err == nil {
		zw.bw.WriteUint48(FooterMagic)
		zw.bw.WriteUint32(zw.streamCRC)
		zw.err = zw.bw.Flush()
	}
	zw.err = internal(zw.err)

	raw, packed := zw.rawOffset, int64(zw.bw.BitsWritten()/8)
	duration := time.Since(zw.started)
	zw.metrics.RecordStream(zw.ctx, telemetry.OpTypeCompress, duration, raw, packed, zw.err)
	if zw.err != nil {
		zw.opts.stats.TrackError("compress")
		return zw.err
	}
	zw.opts.stats.TrackOperationWithLatency(stats.OpCompressStream, uint64(duration.Nanoseconds()))
	zw.opts.stats.TrackBytes(uint64(raw), uint64(packed))
	zw.logger.Info("compressed %d bytes into %d in %d blocks, peak reorder queue %d",
		raw, packed, zw.index.Len(), zw.pool.PeakPending())

	return nil
}

// StreamCRC returns the stream checksum written to the footer. It is only
// meaningful after Close.
func (zw *Writer) StreamCRC() uint32 {
	return zw.streamCRC
}

// Index returns the positions of the blocks written. It is only meaningful after
// Close.
func (zw *Writer) Index() *index.Index {
	return &zw.index
}

// BytesIn returns the number of uncompressed bytes accepted.
func (zw *Writer) BytesIn() int64 {
	return zw.rawOffset + zw.enc.Consumed()
}

// BytesOut returns the compressed size. It is only meaningful after Close.
func (zw *Writer) BytesOut() int64 {
	return int64(zw.bw.BitsWritten() / 8)
}

// Stats returns the writer's statistics collector.
func (zw *Writer) Stats() stats.Collector {
	return zw.opts.stats
}
