// Package bzip2 reads and writes the bzip2 compressed format.
//
// A Writer splits its input into blocks and compresses them concurrently, emitting
// them in input order so the output is identical for any worker count. A Reader
// decodes blocks sequentially and follows concatenated streams. Checksum mismatches
// do not stop a Reader unless strict checking is enabled; they are logged and
// reported by Verify once the data has been read.
package bzip2

import (
	"io"

	"github.com/KevoDB/kbz/pkg/bitstream"
	"github.com/KevoDB/kbz/pkg/block"
)

const (
	// StreamMagic starts every stream and is followed by the block size digit.
	StreamMagic = "BZh"

	// FooterMagic ends a stream (the BCD digits of the square root of pi).
	FooterMagic uint64 = 0x177245385090

	streamMagicBits = 0x425A68
)

// writeStreamHeader writes "BZh" and the block size digit.
func writeStreamHeader(bw *bitstream.Writer, factor int) {
	bw.WriteBits(streamMagicBits, 24)
	bw.WriteBits(uint32('0'+factor), 8)
}

// readStreamHeader reads "BZh" and the block size digit and returns the factor.
func readStreamHeader(br *bitstream.Reader) (int, error) {
	v, err := br.ReadUint32()
	if err != nil {
		return 0, classify(br, "reading stream header", err)
	}
	if v>>8 != streamMagicBits {
		return 0, corrupt(br, "bad stream magic", nil)
	}
	factor := int(byte(v)) - '0'
	if !block.ValidFactor(factor) {
		return 0, corrupt(br, "bad block size digit", nil)
	}
	return factor, nil
}

// Test reads r to the end and reports whether it is an intact bzip2 file.
func Test(r io.Reader, opts ...Option) error {
	zr, err := NewReader(r, opts...)
	if err != nil {
		return err
	}
	if _, err := io.Copy(io.Discard, zr); err != nil {
		return err
	}
	return zr.Verify()
}
