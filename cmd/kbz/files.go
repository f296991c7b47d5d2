package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
)

const outputBufferSize = 1 << 20

// errSkipped marks files left alone, as opposed to files that failed.
var errSkipped = errors.New("skipped")

// suffixes maps compressed file suffixes to the suffix of the decompressed file.
var suffixes = []struct {
	compressed   string
	decompressed string
}{
	{".bz2", ""},
	{".bz", ""},
	{".tbz2", ".tar"},
	{".tbz", ".tar"},
}

// hasCompressedSuffix reports whether name already looks compressed.
func hasCompressedSuffix(name string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s.compressed) && len(name) > len(s.compressed) {
			return true
		}
	}
	return false
}

func compressedName(name string) string {
	return name + ".bz2"
}

// decompressedName returns the output name for a compressed file. Names without a
// known suffix get ".out" appended and ok is false.
func decompressedName(name string) (out string, ok bool) {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s.compressed) && len(name) > len(s.compressed) {
			return strings.TrimSuffix(name, s.compressed) + s.decompressed, true
		}
	}
	return name + ".out", false
}

// isTerminal reports whether v is a file connected to a terminal.
func isTerminal(v interface{}) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// confirmFunc asks a yes/no question.
type confirmFunc func(prompt string) (bool, error)

// readlineConfirm asks on the terminal. Interrupts and EOF count as no.
func readlineConfirm(prompt string) (bool, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "n",
	})
	if err != nil {
		return false, fmt.Errorf("failed to initialize prompt: %w", err)
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		if err == readline.ErrInterrupt || err == io.EOF {
			return false, nil
		}
		return false, err
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y"), nil
}

// writeAtomic writes path through a temporary file in the same directory that is
// renamed into place only after fn succeeds.
func writeAtomic(path string, perm os.FileMode, fn func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	tempPath := f.Name()

	fail := func(err error) error {
		f.Close()
		os.Remove(tempPath)
		return err
	}

	bw := bufio.NewWriterSize(f, outputBufferSize)
	if err := fn(bw); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(fmt.Errorf("failed to write output: %w", err))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("failed to sync output: %w", err))
	}
	if err := f.Chmod(perm); err != nil {
		return fail(fmt.Errorf("failed to set permissions: %w", err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close output: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename output: %w", err)
	}
	return nil
}

// fileErrors reports that some files failed; each failure has been logged already.
type fileErrors struct {
	failed int
	code   int
}

func (e *fileErrors) Error() string {
	if e.failed == 1 {
		return "1 file failed"
	}
	return fmt.Sprintf("%d files failed", e.failed)
}
