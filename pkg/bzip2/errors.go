package bzip2

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KevoDB/kbz/pkg/bitstream"
	"github.com/KevoDB/kbz/pkg/bwt"
	"github.com/KevoDB/kbz/pkg/pipeline"
)

var (
	// ErrCorrupt is matched by every error caused by malformed compressed data
	ErrCorrupt = errors.New("bzip2: corrupt input")
	// ErrChecksum is matched by checksum mismatches
	ErrChecksum = errors.New("bzip2: checksum mismatch")
	// ErrInternal is matched by failures of the compressor itself
	ErrInternal = errors.New("bzip2: internal error")
	// ErrClosed is returned when using a closed Writer or Reader
	ErrClosed = errors.New("bzip2: use of closed stream")
)

// StructuralError reports malformed compressed data.
type StructuralError struct {
	// BitOffset is the stream position at which the problem was found.
	BitOffset uint64
	// Msg describes the problem.
	Msg string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bzip2: corrupt input at bit %d: %s: %v", e.BitOffset, e.Msg, e.Err)
	}
	return fmt.Sprintf("bzip2: corrupt input at bit %d: %s", e.BitOffset, e.Msg)
}

// Unwrap returns the underlying error.
func (e *StructuralError) Unwrap() error {
	return e.Err
}

// Is makes every StructuralError match ErrCorrupt.
func (e *StructuralError) Is(target error) bool {
	return target == ErrCorrupt
}

// Mismatch is one failed checksum comparison.
type Mismatch struct {
	// Block is the zero-based block number across all streams, or -1 for a stream
	// checksum.
	Block    int
	Stream   int
	Stored   uint32
	Computed uint32
}

// String describes the mismatch.
func (m Mismatch) String() string {
	if m.Block < 0 {
		return fmt.Sprintf("stream %d: stored %08x, computed %08x", m.Stream, m.Stored, m.Computed)
	}
	return fmt.Sprintf("block %d: stored %08x, computed %08x", m.Block, m.Stored, m.Computed)
}

// ChecksumError lists the checksum mismatches found while reading.
type ChecksumError struct {
	Mismatches []Mismatch
}

// Error implements the error interface.
func (e *ChecksumError) Error() string {
	parts := make([]string, len(e.Mismatches))
	for i, m := range e.Mismatches {
		parts[i] = m.String()
	}
	return "bzip2: checksum mismatch: " + strings.Join(parts, "; ")
}

// Is makes every ChecksumError match ErrChecksum.
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksum
}

// corrupt builds a StructuralError at the reader's current position.
func corrupt(br *bitstream.Reader, msg string, err error) error {
	return &StructuralError{BitOffset: br.BitsRead(), Msg: msg, Err: err}
}

// classify maps a decoding failure onto the package's error kinds. Source failures
// pass through, everything else is corrupt data.
func classify(br *bitstream.Reader, msg string, err error) error {
	if err == nil {
		return nil
	}
	var se *StructuralError
	if errors.As(err, &se) || errors.Is(err, bitstream.ErrReadFailed) {
		return err
	}
	if errors.Is(err, bitstream.ErrNoMoreData) {
		return corrupt(br, msg, fmt.Errorf("unexpected end of data: %w", err))
	}
	return corrupt(br, msg, err)
}

// internal wraps worker failures that are not I/O errors.
func internal(err error) error {
	if err == nil || errors.Is(err, ErrInternal) {
		return err
	}
	var ie *bwt.InternalError
	if errors.As(err, &ie) || errors.Is(err, pipeline.ErrPanic) {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return err
}
