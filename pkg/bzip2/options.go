package bzip2

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/KevoDB/kbz/pkg/bitstream"
	"github.com/KevoDB/kbz/pkg/block"
	"github.com/KevoDB/kbz/pkg/bwt"
	"github.com/KevoDB/kbz/pkg/common/log"
	"github.com/KevoDB/kbz/pkg/huffman"
	"github.com/KevoDB/kbz/pkg/stats"
	"github.com/KevoDB/kbz/pkg/telemetry"
)

const (
	// DefaultBlockSize is the block size digit used when none is given.
	DefaultBlockSize = block.MaxFactor
)

// ErrOption is returned for an option value out of range
var ErrOption = errors.New("bzip2: invalid option")

// Option configures a Writer or a Reader.
type Option func(*options)

type options struct {
	blockSize      int
	workFactor     int
	workers        int
	iterations     int
	readBufferSize int
	strict         bool

	logger    log.Logger
	telemetry telemetry.Telemetry
	stats     stats.Collector
}

func defaultOptions() options {
	return options{
		blockSize:      DefaultBlockSize,
		workFactor:     bwt.DefaultWorkFactor,
		workers:        runtime.GOMAXPROCS(0),
		iterations:     huffman.DefaultIterations,
		readBufferSize: bitstream.DefaultChunkSize,
	}
}

func buildOptions(opts []Option) (options, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if !block.ValidFactor(o.blockSize) {
		return o, fmt.Errorf("%w: block size %d not in 1..9", ErrOption, o.blockSize)
	}
	if o.workFactor < 0 || o.workFactor > bwt.MaxWorkFactor {
		return o, fmt.Errorf("%w: work factor %d not in 0..%d", ErrOption, o.workFactor, bwt.MaxWorkFactor)
	}
	if o.workers < 1 {
		return o, fmt.Errorf("%w: workers must be positive", ErrOption)
	}
	if o.iterations < 1 {
		return o, fmt.Errorf("%w: iterations must be positive", ErrOption)
	}
	if o.readBufferSize < 1 {
		return o, fmt.Errorf("%w: read buffer size must be positive", ErrOption)
	}

	if o.logger == nil {
		o.logger = log.GetDefaultLogger()
	}
	if o.telemetry == nil {
		o.telemetry = telemetry.NewNoop()
	}
	if o.stats == nil {
		o.stats = stats.NewAtomicCollector()
	}
	return o, nil
}

// WithBlockSize sets the block size digit, 1 to 9, in units of 100000 bytes.
func WithBlockSize(factor int) Option {
	return func(o *options) {
		o.blockSize = factor
	}
}

// WithWorkFactor sets how much effort the primary sort may spend on repetitive
// data before the fallback sort takes over. Zero selects the default.
func WithWorkFactor(wf int) Option {
	return func(o *options) {
		if wf == 0 {
			wf = bwt.DefaultWorkFactor
		}
		o.workFactor = wf
	}
}

// WithWorkers sets the number of blocks compressed concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithIterations sets the number of Huffman table refinement passes.
func WithIterations(n int) Option {
	return func(o *options) {
		o.iterations = n
	}
}

// WithReadBufferSize sets the size of the chunks read from the compressed source.
func WithReadBufferSize(n int) Option {
	return func(o *options) {
		o.readBufferSize = n
	}
}

// WithStrictChecksums makes a Reader fail on the first checksum mismatch instead of
// delivering the data and reporting the mismatch from Verify.
func WithStrictChecksums(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTelemetry sets the telemetry sink for codec metrics and spans.
func WithTelemetry(tel telemetry.Telemetry) Option {
	return func(o *options) {
		o.telemetry = tel
	}
}

// WithStats sets the statistics collector.
func WithStats(c stats.Collector) Option {
	return func(o *options) {
		o.stats = c
	}
}
