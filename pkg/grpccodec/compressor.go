// Package grpccodec registers a bzip2 compressor with gRPC. Importing the package is
// enough; calls opt in with grpc.UseCompressor(grpccodec.Name).
package grpccodec

import (
	"fmt"
	"io"
	"sync/atomic"

	"google.golang.org/grpc/encoding"

	"github.com/KevoDB/kbz/pkg/block"
	"github.com/KevoDB/kbz/pkg/bzip2"
	"github.com/KevoDB/kbz/pkg/common/log"
)

// Name is the content-coding name the compressor is registered under.
const Name = "bzip2"

// Messages are usually far smaller than a block, so one worker is enough.
const messageWorkers = 1

type compressor struct {
	level atomic.Int32
}

var c = newCompressor()

func newCompressor() *compressor {
	cp := &compressor{}
	cp.level.Store(block.MaxFactor)
	return cp
}

func init() {
	encoding.RegisterCompressor(c)
}

// SetLevel sets the block size digit, 1 to 9, used for outgoing messages.
func SetLevel(level int) error {
	if !block.ValidFactor(level) {
		return fmt.Errorf("grpccodec: invalid level %d", level)
	}
	c.level.Store(int32(level))
	return nil
}

// Name returns the registered name.
func (cp *compressor) Name() string {
	return Name
}

// Compress returns a writer compressing one message into w.
func (cp *compressor) Compress(w io.Writer) (io.WriteCloser, error) {
	zw, err := bzip2.NewWriter(w,
		bzip2.WithBlockSize(int(cp.level.Load())),
		bzip2.WithWorkers(messageWorkers),
		bzip2.WithLogger(log.Discard()),
	)
	if err != nil {
		return nil, err
	}
	return zw, nil
}

// Decompress returns a reader over the decompressed message. Checksum failures
// fail the read.
func (cp *compressor) Decompress(r io.Reader) (io.Reader, error) {
	zr, err := bzip2.NewReader(r,
		bzip2.WithStrictChecksums(true),
		bzip2.WithLogger(log.Discard()),
	)
	if err != nil {
		return nil, err
	}
	return zr, nil
}
