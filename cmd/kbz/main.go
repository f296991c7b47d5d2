// kbz compresses and decompresses files in the bzip2 format, using every core for
// compression.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/KevoDB/kbz/pkg/bzip2"
)

// Exit codes
const (
	exitOK       = 0
	exitFailure  = 1
	exitCorrupt  = 2
	exitInternal = 3
)

var (
	compressFlag = &cli.BoolFlag{
		Name:    "compress",
		Aliases: []string{"z"},
		Usage:   "force compression",
	}
	decompressFlag = &cli.BoolFlag{
		Name:    "decompress",
		Aliases: []string{"d"},
		Usage:   "force decompression",
	}
	testFlag = &cli.BoolFlag{
		Name:    "test",
		Aliases: []string{"t"},
		Usage:   "test compressed file integrity",
	}
	forceFlag = &cli.BoolFlag{
		Name:    "force",
		Aliases: []string{"f"},
		Usage:   "overwrite existing output files",
	}
	keepFlag = &cli.BoolFlag{
		Name:    "keep",
		Aliases: []string{"k"},
		Usage:   "keep (don't delete) input files",
	}
	stdoutFlag = &cli.BoolFlag{
		Name:    "stdout",
		Aliases: []string{"c"},
		Usage:   "output to standard out",
	}
	blockSizeFlag = &cli.IntFlag{
		Name:     "block-size",
		Aliases:  []string{"b"},
		Usage:    "block size in units of 100k (1-9)",
		Category: "TUNING",
	}
	workFactorFlag = &cli.IntFlag{
		Name:     "work-factor",
		Usage:    "sorting effort before the fallback sort (1-100)",
		Category: "TUNING",
	}
	workersFlag = &cli.IntFlag{
		Name:     "workers",
		Aliases:  []string{"j"},
		Usage:    "number of blocks compressed in parallel",
		Category: "TUNING",
	}
	verboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "be verbose (a 2nd -v gives more)",
	}
	quietFlag = &cli.BoolFlag{
		Name:    "quiet",
		Aliases: []string{"q"},
		Usage:   "suppress noncritical error messages",
	}
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "load settings from a JSON config file",
	}
	indexFlag = &cli.BoolFlag{
		Name:  "index",
		Usage: "write a block index next to the compressed file",
	}
	strictFlag = &cli.BoolFlag{
		Name:  "strict",
		Usage: "stop at the first checksum mismatch",
	}
	telemetryFlag = &cli.StringFlag{
		Name:     "telemetry",
		Usage:    "enable telemetry with the given exporters (stdout, otlp)",
		Category: "TELEMETRY",
	}
)

func init() {
	// -v counts verbosity, so the version flag takes -V as bzip2 does.
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

// levelFlags returns -1 to -9, with --fast and --best as aliases for the ends.
func levelFlags() []cli.Flag {
	flags := make([]cli.Flag, 0, 9)
	for i := 1; i <= 9; i++ {
		f := &cli.BoolFlag{
			Name:     strconv.Itoa(i),
			Usage:    fmt.Sprintf("use %dk blocks", i*100),
			Category: "TUNING",
		}
		switch i {
		case 1:
			f.Aliases = []string{"fast"}
		case 9:
			f.Aliases = []string{"best"}
		}
		flags = append(flags, f)
	}
	return flags
}

// newApp builds the command line interface reading from stdin and writing to
// stdout and stderr.
func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	app := &cli.App{
		Name:                   "kbz",
		Usage:                  "a parallel bzip2 compressor",
		UsageText:              "kbz [flags] [file ...]\nkbz command [flags] file",
		Version:                "0.1.0",
		HideHelpCommand:        true,
		UseShortOptionHandling: true,
		Reader:                 stdin,
		Writer:                 stdout,
		ErrWriter:              stderr,
		Flags: append([]cli.Flag{
			compressFlag,
			decompressFlag,
			testFlag,
			forceFlag,
			keepFlag,
			stdoutFlag,
			verboseFlag,
			quietFlag,
			configFlag,
			indexFlag,
			strictFlag,
			blockSizeFlag,
			workFactorFlag,
			workersFlag,
			telemetryFlag,
		}, levelFlags()...),
		Commands: []*cli.Command{
			inspectCommand,
			extractCommand,
		},
		Action: compressAction,
		// Errors carry their own exit codes, see exitCode.
		ExitErrHandler: func(*cli.Context, error) {},
	}
	return app
}

// exitCode maps an error returned by the app to the process exit status.
func exitCode(err error) int {
	var fe *fileErrors
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &fe):
		return fe.code
	case errors.Is(err, bzip2.ErrInternal):
		return exitInternal
	case errors.Is(err, bzip2.ErrCorrupt), errors.Is(err, bzip2.ErrChecksum):
		return exitCorrupt
	default:
		return exitFailure
	}
}

// modeFromName picks the default mode from the program name, so that links named
// kbunzip2 or kbzcat behave like bunzip2 and bzcat.
func modeFromName(arg0 string) (decompress, toStdout bool) {
	name := strings.TrimSuffix(filepath.Base(arg0), ".exe")
	switch {
	case strings.Contains(name, "cat"):
		return true, true
	case strings.Contains(name, "unzip"):
		return true, false
	}
	return false, false
}

func main() {
	args := os.Args
	if decompress, toStdout := modeFromName(args[0]); decompress {
		extra := []string{"-d"}
		if toStdout {
			extra = append(extra, "-c")
		}
		args = append([]string{args[0]}, append(extra, args[1:]...)...)
	}

	app := newApp(os.Stdin, os.Stdout, os.Stderr)
	err := app.Run(args)
	if err != nil {
		var fe *fileErrors
		if !errors.As(err, &fe) {
			fmt.Fprintf(os.Stderr, "kbz: %v\n", err)
		}
	}
	os.Exit(exitCode(err))
}
