package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/sdds/pkg/errors"
	"github.com/ajitpratap0/sdds/pkg/json"
	"github.com/ajitpratap0/sdds/pkg/scalar"
	"github.com/ajitpratap0/sdds/pkg/sdds"
	"github.com/ajitpratap0/sdds/pkg/table"
)

// window keeps rows whose column value lies in [lo, hi]
type window struct {
	column string
	lo, hi float64
}

// parseWindow parses "column:lo:hi"; the column name may itself contain colons
func parseWindow(s string) (window, error) {
	hiAt := strings.LastIndexByte(s, ':')
	if hiAt < 0 {
		return window{}, errors.Newf(errors.ErrorTypeConfig, "filter %q is not column:lo:hi", s)
	}
	loAt := strings.LastIndexByte(s[:hiAt], ':')
	if loAt <= 0 {
		return window{}, errors.Newf(errors.ErrorTypeConfig, "filter %q is not column:lo:hi", s)
	}
	lo, err := strconv.ParseFloat(s[loAt+1:hiAt], 64)
	if err != nil {
		return window{}, errors.Wrapf(err, errors.ErrorTypeConfig, "invalid lower bound in filter %q", s)
	}
	hi, err := strconv.ParseFloat(s[hiAt+1:], 64)
	if err != nil {
		return window{}, errors.Wrapf(err, errors.ErrorTypeConfig, "invalid upper bound in filter %q", s)
	}
	return window{column: s[:loAt], lo: lo, hi: hi}, nil
}

type dumpOptions struct {
	asJSON   bool
	pretty   bool
	columns  []string
	filters  []string
	rowLimit int64
}

func newDumpCommand(c *cli) *cobra.Command {
	opts := &dumpOptions{}
	cmd := &cobra.Command{
		Use:   "dump FILE",
		Short: "Print the pages of a file",
		Long: `Print every page of FILE: its parameters, arrays and the selected
columns of the rows passing every filter.

Example:
  sdds dump run.sdds --columns 'x*' --filter x:0:1.5 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(c, cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print one JSON document per page in a JSON array")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Indent JSON output")
	cmd.Flags().StringSliceVar(&opts.columns, "columns", nil, "Column name patterns to print (wildcards *, ? and [] allowed)")
	cmd.Flags().StringArrayVar(&opts.filters, "filter", nil, "Keep rows with column value in a window, as column:lo:hi (repeatable)")
	cmd.Flags().Int64Var(&opts.rowLimit, "row-limit", 0, "Stop at the first page with more rows (0 = no limit)")
	return cmd
}

func runDump(c *cli, w io.Writer, path string, opts *dumpOptions) error {
	windows := make([]window, 0, len(opts.filters))
	for _, f := range opts.filters {
		win, err := parseWindow(f)
		if err != nil {
			return err
		}
		windows = append(windows, win)
	}

	in, err := sdds.Open(path, c.options()...)
	if err != nil {
		return err
	}
	defer in.Close()
	if opts.rowLimit > 0 {
		if err := in.SetRowLimit(opts.rowLimit); err != nil {
			return err
		}
	}

	var enc *json.StreamingEncoder
	if opts.asJSON {
		enc = json.NewStreamingEncoder(w, true)
		enc.SetPretty(opts.pretty, "  ")
	}
	for {
		if _, err := in.ReadPage(); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		p := in.Page()
		if err := selectContent(p, opts.columns, windows); err != nil {
			return err
		}
		if enc != nil {
			doc, err := json.NewPageDocument(p)
			if err != nil {
				return err
			}
			if err := enc.Encode(doc); err != nil {
				return err
			}
			continue
		}
		if err := writePage(w, p); err != nil {
			return err
		}
	}
	if enc != nil {
		return enc.Close()
	}
	return nil
}

// selectContent narrows p to the columns matching any pattern and the rows
// inside every window
func selectContent(p *table.Page, patterns []string, windows []window) error {
	if len(patterns) > 0 {
		p.SetColumnFlags(false)
		for _, pattern := range patterns {
			if _, err := p.SelectColumnsByPattern(pattern, table.Or); err != nil {
				return err
			}
		}
	}
	for _, win := range windows {
		if _, err := p.FilterRowsByNumericWindow(win.column, win.lo, win.hi, table.And); err != nil {
			return err
		}
	}
	return nil
}

func formatValue(v any) string {
	text, err := scalar.FormatExact(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return text
}

// writePage prints p as text: parameters, arrays, then a table of the
// selected rows and columns
func writePage(w io.Writer, p *table.Page) error {
	l := p.Layout()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "page %d\n", p.PageNumber())
	for i, def := range l.Parameters {
		v, err := p.Parameter(table.ByIndex(i))
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "  %s\t= %s\t%s\n", def.Name, formatValue(v), def.Units)
	}
	for i, def := range l.Arrays {
		a, err := p.Array(table.ByIndex(i))
		if err != nil {
			return err
		}
		values := make([]string, a.Elements())
		for j := range values {
			values[j] = formatValue(a.Data.Value(j))
		}
		fmt.Fprintf(tw, "  %s%v\t= [%s]\t%s\n", def.Name, a.Dims, strings.Join(values, " "), def.Units)
	}

	names := p.SelectedColumnNames()
	if len(names) > 0 {
		fmt.Fprintf(tw, "\n%s\n", strings.Join(names, "\t"))
		matrix, err := p.Matrix()
		if err != nil {
			return err
		}
		for _, row := range matrix {
			cells := make([]string, len(row))
			for j, v := range row {
				cells[j] = formatValue(v)
			}
			fmt.Fprintf(tw, "%s\n", strings.Join(cells, "\t"))
		}
	}
	fmt.Fprintln(tw)
	return tw.Flush()
}
