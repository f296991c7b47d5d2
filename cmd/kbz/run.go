package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/KevoDB/kbz/pkg/bzip2"
	"github.com/KevoDB/kbz/pkg/common/log"
	"github.com/KevoDB/kbz/pkg/config"
	"github.com/KevoDB/kbz/pkg/index"
	"github.com/KevoDB/kbz/pkg/stats"
	"github.com/KevoDB/kbz/pkg/telemetry"
)

type mode int

const (
	modeCompress mode = iota
	modeDecompress
	modeTest
)

// runner holds the settings shared by every file of one invocation.
type runner struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg        *config.Config
	mode       mode
	force      bool
	keep       bool
	toStdout   bool
	writeIndex bool
	verbosity  int

	logger  log.Logger
	tel     telemetry.Telemetry
	stats   *stats.AtomicCollector
	confirm confirmFunc

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// newRunner resolves settings from defaults, the config file, KBZ_* variables and
// flags, in that order.
func newRunner(c *cli.Context) (*runner, error) {
	cfg := config.NewDefaultConfig()
	if path := c.String(configFlag.Name); path != "" {
		loaded, err := config.LoadConfigFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	cfg.Update(func(cfg *config.Config) {
		for i := 1; i <= 9; i++ {
			if c.Bool(strconv.Itoa(i)) {
				cfg.BlockSize = i
			}
		}
		if c.IsSet(blockSizeFlag.Name) {
			cfg.BlockSize = c.Int(blockSizeFlag.Name)
		}
		if c.IsSet(workFactorFlag.Name) {
			cfg.WorkFactor = c.Int(workFactorFlag.Name)
		}
		if c.IsSet(workersFlag.Name) {
			cfg.Workers = c.Int(workersFlag.Name)
		}
		if c.Bool(strictFlag.Name) {
			cfg.StrictChecksums = true
		}
		if c.Bool(indexFlag.Name) {
			cfg.WriteIndex = true
		}
		cfg.Verbosity += c.Count(verboseFlag.Name)
		if c.Bool(quietFlag.Name) {
			cfg.Verbosity = -1
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &runner{
		cfg:        cfg,
		force:      c.Bool(forceFlag.Name),
		keep:       c.Bool(keepFlag.Name),
		toStdout:   c.Bool(stdoutFlag.Name),
		writeIndex: cfg.WriteIndex,
		verbosity:  cfg.Verbosity,
		stats:      stats.NewAtomicCollector(),
		stdin:      c.App.Reader,
		stdout:     c.App.Writer,
		stderr:     c.App.ErrWriter,
	}

	switch {
	case c.Bool(testFlag.Name):
		r.mode = modeTest
	case c.Bool(compressFlag.Name):
		r.mode = modeCompress
	case c.Bool(decompressFlag.Name):
		r.mode = modeDecompress
	}

	r.logger = log.NewStandardLogger(
		log.WithLevel(log.LevelFromVerbosity(r.verbosity)),
		log.WithOutput(r.stderr),
		log.WithPrefix("kbz"),
	)

	telCfg := telemetry.DefaultConfig()
	telCfg.LoadFromEnv()
	if c.IsSet(telemetryFlag.Name) {
		telCfg.Enabled = true
		telCfg.Exporters = telemetry.ParseExporters(c.String(telemetryFlag.Name))
	}
	telCfg.Output = r.stderr
	tel, err := telemetry.New(telCfg)
	if err != nil {
		return nil, err
	}
	r.tel = tel

	if isTerminal(r.stdin) {
		r.confirm = readlineConfirm
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	r.ctx, r.cancel = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	return r, nil
}

// Close flushes telemetry.
func (r *runner) Close() error {
	r.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), telemetry.DefaultConfig().ExportTimeout)
	defer cancel()
	return r.tel.Shutdown(ctx)
}

func (r *runner) options() []bzip2.Option {
	return append(r.cfg.Options(),
		bzip2.WithLogger(r.logger),
		bzip2.WithTelemetry(r.tel),
		bzip2.WithStats(r.stats),
	)
}

// compressAction is the default action: compress, decompress or test each file.
func compressAction(c *cli.Context) error {
	r, err := newRunner(c)
	if err != nil {
		return err
	}
	defer r.Close()

	files := c.Args().Slice()
	if len(files) == 0 {
		return r.runStream()
	}

	failed, code := 0, exitOK
	for _, name := range files {
		err := r.processFile(name)
		if err == nil {
			continue
		}
		if errors.Is(err, errSkipped) {
			r.logger.Warn("%s: %v", name, err)
		} else {
			r.logger.Error("%s: %v", name, err)
		}
		failed++
		if fc := exitCode(err); fc > code {
			code = fc
		}
		if r.ctx.Err() != nil {
			break
		}
	}

	if len(files) > 1 {
		r.logger.Info("%d files, overall ratio %.3f", len(files), r.stats.Ratio())
	}
	if failed > 0 {
		return &fileErrors{failed: failed, code: code}
	}
	return nil
}

// runStream filters stdin to stdout.
func (r *runner) runStream() error {
	switch r.mode {
	case modeTest:
		return bzip2.Test(r.stdin, r.options()...)
	case modeDecompress:
		if isTerminal(r.stdin) && !r.force {
			return errors.New("compressed data cannot be read from a terminal")
		}
		_, err := r.decompress(r.stdout, r.stdin)
		return err
	default:
		if isTerminal(r.stdout) && !r.force {
			return errors.New("compressed data cannot be written to a terminal")
		}
		_, err := r.compress(r.stdout, r.stdin)
		return err
	}
}

// processFile handles one named file according to the mode.
func (r *runner) processFile(name string) error {
	info, err := os.Stat(name)
	if err != nil {
		return fmt.Errorf("can't open input: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: input is a directory", errSkipped)
	}
	if !info.Mode().IsRegular() && !r.force {
		return fmt.Errorf("%w: input is not a regular file", errSkipped)
	}

	in, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("can't open input: %w", err)
	}
	defer in.Close()

	switch r.mode {
	case modeTest:
		if err := bzip2.Test(in, r.options()...); err != nil {
			return err
		}
		r.logger.Info("%s: ok", name)
		return nil
	case modeDecompress:
		return r.decompressFile(name, in, info.Mode().Perm())
	default:
		return r.compressFile(name, in, info)
	}
}

func (r *runner) compressFile(name string, in io.Reader, info os.FileInfo) error {
	if hasCompressedSuffix(name) && !r.force {
		return fmt.Errorf("%w: already has a compressed suffix", errSkipped)
	}

	if r.toStdout {
		zw, err := r.compress(r.stdout, in)
		if err != nil {
			return err
		}
		r.report(name, zw.BytesIn(), zw.BytesOut())
		return nil
	}

	out := compressedName(name)
	if err := r.checkOutput(out); err != nil {
		return err
	}

	var zw *bzip2.Writer
	err := writeAtomic(out, info.Mode().Perm(), func(w io.Writer) error {
		var err error
		zw, err = r.compress(w, in)
		return err
	})
	if err != nil {
		return err
	}
	r.report(name, zw.BytesIn(), zw.BytesOut())

	if r.writeIndex {
		if err := zw.Index().WriteFile(out + index.FileSuffix); err != nil {
			return err
		}
	}
	return r.removeInput(name)
}

func (r *runner) decompressFile(name string, in io.Reader, perm os.FileMode) error {
	if r.toStdout {
		_, err := r.decompress(r.stdout, in)
		return err
	}

	out, ok := decompressedName(name)
	if !ok {
		r.logger.Warn("%s: unknown suffix, writing to %s", name, out)
	}
	if err := r.checkOutput(out); err != nil {
		return err
	}

	// Checksum mismatches keep the output so the good blocks can be recovered,
	// but the input is kept too and the run fails.
	var zr *bzip2.Reader
	var checksumErr error
	err := writeAtomic(out, perm, func(w io.Writer) error {
		var err error
		zr, err = r.decompress(w, in)
		if errors.Is(err, bzip2.ErrChecksum) && !r.cfg.StrictChecksums {
			checksumErr = err
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}

	if r.writeIndex {
		if err := zr.Index().WriteFile(name + index.FileSuffix); err != nil {
			return err
		}
	}
	if checksumErr != nil {
		return checksumErr
	}
	r.logger.Info("%s: done", name)
	return r.removeInput(name)
}

// checkOutput refuses to replace an existing file unless forced or confirmed.
func (r *runner) checkOutput(out string) error {
	if _, err := os.Stat(out); err != nil {
		return nil
	}
	if r.force {
		return nil
	}
	if r.confirm == nil {
		return fmt.Errorf("%w: output file %s already exists", errSkipped, out)
	}
	ok, err := r.confirm(fmt.Sprintf("kbz: overwrite %s? [y/N] ", out))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: not overwriting %s", errSkipped, out)
	}
	return nil
}

func (r *runner) removeInput(name string) error {
	if r.keep {
		return nil
	}
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("failed to remove input: %w", err)
	}
	return nil
}

func (r *runner) compress(w io.Writer, in io.Reader) (*bzip2.Writer, error) {
	zw, err := bzip2.NewWriterContext(r.ctx, w, r.options()...)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(zw, in); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return zw, nil
}

// decompress copies the whole of in to w and then reports any checksum mismatch.
func (r *runner) decompress(w io.Writer, in io.Reader) (*bzip2.Reader, error) {
	zr, err := bzip2.NewReaderContext(r.ctx, in, r.options()...)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(w, zr); err != nil {
		return zr, err
	}
	return zr, zr.Verify()
}

// report prints the per file line of -v.
func (r *runner) report(name string, in, out int64) {
	if r.verbosity < 1 {
		return
	}
	if in == 0 {
		fmt.Fprintf(r.stderr, "  %s: no data compressed.\n", name)
		return
	}
	fmt.Fprintf(r.stderr, "  %s: %6.3f:1, %6.3f bits/byte, %5.2f%% saved, %d in, %d out.\n",
		name,
		float64(in)/float64(out),
		8*float64(out)/float64(in),
		100*(1-float64(out)/float64(in)),
		in, out)
}
