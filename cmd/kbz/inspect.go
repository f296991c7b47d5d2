package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/KevoDB/kbz/pkg/bzip2"
	"github.com/KevoDB/kbz/pkg/index"
)

var (
	writeIndexFlag = &cli.BoolFlag{
		Name:  "write-index",
		Usage: "save the block index next to the file",
	}
	offsetFlag = &cli.Int64Flag{
		Name:  "offset",
		Usage: "first uncompressed byte to extract",
	}
	lengthFlag = &cli.Int64Flag{
		Name:  "length",
		Value: -1,
		Usage: "number of bytes to extract, -1 for the rest of the file",
	}

	inspectCommand = &cli.Command{
		Name:      "inspect",
		Usage:     "List the streams and blocks of a compressed file",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{writeIndexFlag},
		Action:    inspectAction,
	}
	extractCommand = &cli.Command{
		Name:      "extract",
		Usage:     "Decompress a byte range using the block index",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{offsetFlag, lengthFlag},
		Action:    extractAction,
	}
)

func fileArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("%s needs exactly one file argument", c.Command.Name)
	}
	return c.Args().First(), nil
}

// scanIndex decompresses name to rebuild its block index.
func (r *runner) scanIndex(name string) (*index.Index, *bzip2.Reader, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	zr, err := bzip2.NewReaderContext(r.ctx, f, r.options()...)
	if err != nil {
		return nil, nil, err
	}
	if _, err := io.Copy(io.Discard, zr); err != nil {
		return nil, zr, err
	}
	return zr.Index(), zr, nil
}

func inspectAction(c *cli.Context) error {
	name, err := fileArg(c)
	if err != nil {
		return err
	}
	r, err := newRunner(c)
	if err != nil {
		return err
	}
	defer r.Close()

	ix, zr, err := r.scanIndex(name)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(r.stdout, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "BLOCK\tLEVEL\tBIT OFFSET\tRAW OFFSET\tRAW SIZE\tCRC\t")
	for i, e := range ix.Entries {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%08x\t\n", i, e.Factor, e.BitOffset, e.RawOffset, e.RawSize, e.CRC)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(r.stdout, "%d streams, %d blocks, %d bytes from %d\n",
		zr.Streams(), zr.Blocks(), ix.RawSize(), zr.BytesIn())

	verr := zr.Verify()
	var ce *bzip2.ChecksumError
	if errors.As(verr, &ce) {
		for _, m := range ce.Mismatches {
			fmt.Fprintf(r.stdout, "checksum mismatch: %s\n", m)
		}
	} else {
		fmt.Fprintln(r.stdout, "checksums ok")
	}

	if c.Bool(writeIndexFlag.Name) {
		if err := ix.WriteFile(name + index.FileSuffix); err != nil {
			return err
		}
	}
	return verr
}

func extractAction(c *cli.Context) error {
	name, err := fileArg(c)
	if err != nil {
		return err
	}
	r, err := newRunner(c)
	if err != nil {
		return err
	}
	defer r.Close()

	ix, err := index.ReadFile(name + index.FileSuffix)
	if errors.Is(err, os.ErrNotExist) {
		r.logger.Info("%s: no index, scanning", name)
		ix, _, err = r.scanIndex(name)
	}
	if err != nil {
		return err
	}
	if err := ix.Validate(); err != nil {
		return err
	}

	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	ir := bzip2.NewIndexedReader(f, ix)
	off := c.Int64(offsetFlag.Name)
	if off < 0 || off > ir.Size() {
		return fmt.Errorf("offset %d outside 0..%d", off, ir.Size())
	}
	n := c.Int64(lengthFlag.Name)
	if n < 0 || off+n > ir.Size() {
		n = ir.Size() - off
	}

	_, err = io.Copy(r.stdout, io.NewSectionReader(ir, off, n))
	return err
}
