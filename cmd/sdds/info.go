package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/sdds/pkg/json"
	"github.com/ajitpratap0/sdds/pkg/sdds"
)

func newInfoCommand(c *cli) *cobra.Command {
	var asJSON, countPages bool
	cmd := &cobra.Command{
		Use:   "info FILE",
		Short: "Describe the layout of a file",
		Long: `Print the protocol version, data mode and the parameter, array and
column definitions of FILE. With --pages every page is read to report its row
count.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := sdds.Open(args[0], c.options()...)
			if err != nil {
				return err
			}
			defer in.Close()

			doc := json.NewLayoutDocument(in.Layout())
			var pages []int
			if countPages {
				if pages, err = pageRows(in); err != nil {
					return err
				}
			}
			w := cmd.OutOrStdout()
			if asJSON {
				type info struct {
					*json.LayoutDocument
					Pages []int `json:"pages,omitempty"`
				}
				data, err := json.MarshalIndent(info{doc, pages}, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(w, "%s\n", data)
				return err
			}
			return writeInfo(w, args[0], doc, pages, countPages)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the description as JSON")
	cmd.Flags().BoolVar(&countPages, "pages", false, "Read every page and report its row count")
	return cmd
}

// pageRows reads every page of in and returns the row count of each
func pageRows(in *sdds.Dataset) ([]int, error) {
	var rows []int
	for {
		if _, err := in.ReadPage(); err != nil {
			if err == io.EOF {
				return rows, nil
			}
			return nil, err
		}
		rows = append(rows, in.Page().RowsInUse())
	}
}

func writeInfo(w io.Writer, name string, doc *json.LayoutDocument, pages []int, countPages bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "file:\t%s\n", name)
	fmt.Fprintf(tw, "version:\t%d\n", doc.Version)
	mode := doc.Mode
	if doc.Endianness != "" {
		mode += " (" + doc.Endianness + ")"
	}
	if doc.ColumnMajor {
		mode += ", column-major"
	}
	fmt.Fprintf(tw, "mode:\t%s\n", mode)
	if doc.Description != "" {
		fmt.Fprintf(tw, "description:\t%s\n", doc.Description)
	}
	if doc.Contents != "" {
		fmt.Fprintf(tw, "contents:\t%s\n", doc.Contents)
	}
	sections := []struct {
		title  string
		fields []json.FieldDocument
	}{
		{"parameters", doc.Parameters},
		{"arrays", doc.Arrays},
		{"columns", doc.Columns},
	}
	for _, s := range sections {
		if len(s.fields) == 0 {
			continue
		}
		fmt.Fprintf(tw, "\n%s (%d):\n", s.title, len(s.fields))
		for _, f := range s.fields {
			extra := f.FixedValue
			if f.Dimensions > 0 {
				extra = fmt.Sprintf("%d-D", f.Dimensions)
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", f.Name, f.Type, f.Units, extra, f.Description)
		}
	}
	if countPages {
		fmt.Fprintf(tw, "\npages:\t%d\n", len(pages))
		for i, rows := range pages {
			fmt.Fprintf(tw, "  page %d\t%d rows\n", i+1, rows)
		}
	}
	return tw.Flush()
}
