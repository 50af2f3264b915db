package main

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/sdds/pkg/layout"
	"github.com/ajitpratap0/sdds/pkg/metrics"
	"github.com/ajitpratap0/sdds/pkg/sdds"
)

type convertOptions struct {
	ascii, binary           bool
	bigEndian, littleEndian bool
	columnMajor, rowMajor   bool
}

func newConvertCommand(c *cli) *cobra.Command {
	opts := &convertOptions{}
	cmd := &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Copy a file, changing its data mode, byte order or compression",
		Long: `Copy every page of IN to OUT. The data mode and byte order of IN are kept
unless overridden. The compression of either file follows its name suffix;
.xz and .lzma outputs are always binary.

Example:
  sdds convert run.sdds run.sdds.zst --binary --little-endian`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(c, args[0], args[1], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.ascii, "ascii", false, "Write ASCII data")
	cmd.Flags().BoolVar(&opts.binary, "binary", false, "Write binary data")
	cmd.Flags().BoolVar(&opts.bigEndian, "big-endian", false, "Write big-endian binary data")
	cmd.Flags().BoolVar(&opts.littleEndian, "little-endian", false, "Write little-endian binary data")
	cmd.Flags().BoolVar(&opts.columnMajor, "column-major", false, "Write binary pages column by column")
	cmd.Flags().BoolVar(&opts.rowMajor, "row-major", false, "Write binary pages row by row")
	cmd.MarkFlagsMutuallyExclusive("ascii", "binary")
	cmd.MarkFlagsMutuallyExclusive("big-endian", "little-endian")
	cmd.MarkFlagsMutuallyExclusive("column-major", "row-major")
	return cmd
}

func runConvert(c *cli, inPath, outPath string, opts *convertOptions) error {
	in, err := sdds.Open(inPath, c.options()...)
	if err != nil {
		return err
	}
	defer in.Close()

	cfg := *c.cfg
	switch {
	case opts.bigEndian:
		cfg.OutputEndianness = "big"
	case opts.littleEndian:
		cfg.OutputEndianness = "little"
	}
	collector := metrics.NewCollector(outPath)
	out, err := sdds.InitializeCopy(in, outPath,
		sdds.WithConfig(&cfg), sdds.WithLogger(c.log), sdds.WithMetrics(collector))
	if err != nil {
		return err
	}
	defer out.Close()

	mode := out.Layout().Data
	switch {
	case opts.ascii:
		mode.Mode = layout.ModeASCII
	case opts.binary:
		mode.Mode = layout.ModeBinary
	}
	switch {
	case opts.columnMajor:
		mode.ColumnMajor = true
	case opts.rowMajor:
		mode.ColumnMajor = false
	}
	if mode.Mode == layout.ModeASCII {
		mode.ColumnMajor = false
	} else {
		mode.LinesPerRow = 1
	}
	mode.AdditionalHeaderLines = 0
	if err := out.SetDataMode(mode); err != nil {
		return err
	}
	if err := out.WriteLayout(); err != nil {
		return err
	}

	tracker := metrics.NewThroughputTracker(outPath)
	for {
		if _, err := in.ReadPage(); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		if err := out.CopyPage(in); err != nil {
			return err
		}
		if err := out.WritePage(); err != nil {
			return err
		}
		tracker.Increment(int64(in.Page().CountRowsOfInterest()))
	}
	if err := out.Close(); err != nil {
		return err
	}
	written := collector.Snapshot(metrics.DirectionWrite)
	c.log.Info("converted",
		zap.String("input", inPath),
		zap.String("output", outPath),
		zap.Int64("pages", written.Pages),
		zap.Int64("rows", written.Rows),
		zap.Int64("bytes", written.Bytes),
		zap.Float64("rows_per_second", tracker.GetAndReset()))
	return nil
}
