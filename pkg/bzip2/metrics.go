// ABOUTME: Codec telemetry metrics interface and implementation for bzip2 streams
// ABOUTME: Records block timings, byte counts, sort paths, table counts and checksum failures

package bzip2

import (
	"context"
	"time"

	"github.com/KevoDB/kbz/pkg/block"
	"github.com/KevoDB/kbz/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// CodecMetrics defines the interface for codec telemetry operations.
// All metrics are optional - implementations can safely be no-op.
type CodecMetrics interface {
	telemetry.ComponentMetrics

	// RecordBlockEncode records one compressed block.
	RecordBlockEncode(ctx context.Context, duration time.Duration, rawBytes int64, info block.Info)

	// RecordBlockDecode records one decompressed block.
	RecordBlockDecode(ctx context.Context, duration time.Duration, d *block.Decoded)

	// RecordStream records a finished stream in either direction.
	RecordStream(ctx context.Context, opType string, duration time.Duration, rawBytes, packedBytes int64, err error)

	// RecordChecksumFailure records a block or stream checksum mismatch.
	RecordChecksumFailure(ctx context.Context, kind string)
}

// codecMetrics implements CodecMetrics using the telemetry interface.
type codecMetrics struct {
	tel telemetry.Telemetry
}

// NewCodecMetrics creates a new codec metrics implementation.
// If tel is nil, returns a no-op implementation.
func NewCodecMetrics(tel telemetry.Telemetry) CodecMetrics {
	if tel == nil {
		return &noopCodecMetrics{}
	}
	return &codecMetrics{tel: tel}
}

// RecordBlockEncode records the block's sort path, sizes and timing.
func (m *codecMetrics) RecordBlockEncode(ctx context.Context, duration time.Duration, rawBytes int64, info block.Info) {
	m.tel.RecordHistogram(ctx, "kbz.block.encode.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentBlock),
		attribute.String(telemetry.AttrSortPath, info.Path.String()),
	)

	m.tel.RecordHistogram(ctx, "kbz.block.sort.duration", info.SortDuration.Seconds(),
		attribute.String(telemetry.AttrSortPath, info.Path.String()),
		attribute.Bool("budget_exhausted", info.BudgetExhausted),
	)

	m.tel.RecordCounter(ctx, "kbz.block.sort.total", 1,
		attribute.String(telemetry.AttrSortPath, info.Path.String()),
		attribute.Bool("budget_exhausted", info.BudgetExhausted),
	)

	m.tel.RecordCounter(ctx, "kbz.block.raw.bytes", rawBytes,
		attribute.String(telemetry.AttrOperationType, telemetry.OpTypeCompress),
	)

	m.tel.RecordCounter(ctx, "kbz.block.packed.bits", int64(info.Bits),
		attribute.String(telemetry.AttrOperationType, telemetry.OpTypeCompress),
		attribute.Int(telemetry.AttrTableCount, info.Tables),
	)
}

// RecordBlockDecode records a decoded block's size and timing.
func (m *codecMetrics) RecordBlockDecode(ctx context.Context, duration time.Duration, d *block.Decoded) {
	m.tel.RecordHistogram(ctx, "kbz.block.decode.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentBlock),
		attribute.Int(telemetry.AttrTableCount, d.Tables),
	)

	m.tel.RecordCounter(ctx, "kbz.block.raw.bytes", int64(len(d.Data)),
		attribute.String(telemetry.AttrOperationType, telemetry.OpTypeDecompress),
	)
}

// RecordStream records totals for a finished stream.
func (m *codecMetrics) RecordStream(ctx context.Context, opType string, duration time.Duration, rawBytes, packedBytes int64, err error) {
	status := telemetry.StatusSuccess
	if err != nil {
		status = telemetry.StatusError
	}

	m.tel.RecordHistogram(ctx, "kbz.stream.duration", duration.Seconds(),
		attribute.String(telemetry.AttrOperationType, opType),
		attribute.String(telemetry.AttrStatus, status),
	)

	m.tel.RecordCounter(ctx, "kbz.stream.total", 1,
		attribute.String(telemetry.AttrOperationType, opType),
		attribute.String(telemetry.AttrStatus, status),
	)

	m.tel.RecordCounter(ctx, "kbz.stream.raw.bytes", rawBytes,
		attribute.String(telemetry.AttrOperationType, opType),
	)

	m.tel.RecordCounter(ctx, "kbz.stream.packed.bytes", packedBytes,
		attribute.String(telemetry.AttrOperationType, opType),
	)
}

// RecordChecksumFailure records a checksum mismatch.
func (m *codecMetrics) RecordChecksumFailure(ctx context.Context, kind string) {
	m.tel.RecordCounter(ctx, "kbz.checksum.failures", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentReader),
		attribute.String(telemetry.AttrErrorType, kind),
	)
}

// Close releases any resources held by the metrics implementation.
func (m *codecMetrics) Close() error {
	return nil
}

// noopCodecMetrics provides a no-operation implementation for disabled telemetry.
type noopCodecMetrics struct{}

// RecordBlockEncode is a no-op.
func (n *noopCodecMetrics) RecordBlockEncode(ctx context.Context, duration time.Duration, rawBytes int64, info block.Info) {
}

// RecordBlockDecode is a no-op.
func (n *noopCodecMetrics) RecordBlockDecode(ctx context.Context, duration time.Duration, d *block.Decoded) {
}

// RecordStream is a no-op.
func (n *noopCodecMetrics) RecordStream(ctx context.Context, opType string, duration time.Duration, rawBytes, packedBytes int64, err error) {
}

// RecordChecksumFailure is a no-op.
func (n *noopCodecMetrics) RecordChecksumFailure(ctx context.Context, kind string) {
}

// Close is a no-op.
func (n *noopCodecMetrics) Close() error {
	return nil
}
