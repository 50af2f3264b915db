package codec

import (
	"io"
	"strconv"
	"strings"

	"github.com/ajitpratap0/sdds/pkg/errors"
	"github.com/ajitpratap0/sdds/pkg/layout"
	"github.com/ajitpratap0/sdds/pkg/namelist"
	"github.com/ajitpratap0/sdds/pkg/scalar"
	stringpool "github.com/ajitpratap0/sdds/pkg/strings"
)

// Header comment directives
const (
	DirectiveBigEndian     = "# big-endian"
	DirectiveLittleEndian  = "# little-endian"
	DirectiveFixedRowCount = "# fixed-rowcount"
)

const (
	headerMagic     = "SDDS"
	maxIncludeDepth = 8
)

// WriteHeader writes the version line, the byte order and fixed row count
// directives and one declaration per definition, ending with &data. The
// layout must be committed.
func WriteHeader(w io.Writer, l *layout.Layout) error {
	if !l.Committed() {
		return errors.New(errors.ErrorTypeState, "layout must be committed before it is written")
	}
	lines := make([]string, 0, 4+len(l.Parameters)+len(l.Arrays)+len(l.Columns)+len(l.Associates))
	lines = append(lines, headerMagic+strconv.Itoa(l.Version))
	if l.Data.Mode == layout.ModeBinary {
		if l.Data.Endianness.Resolve() == layout.EndianBig {
			lines = append(lines, "!"+DirectiveBigEndian)
		} else {
			lines = append(lines, "!"+DirectiveLittleEndian)
		}
	}
	if l.FixedRowCount {
		lines = append(lines, "!"+DirectiveFixedRowCount)
	}
	if l.Description.Text != "" || l.Description.Contents != "" {
		nl := &namelist.Namelist{Group: "description"}
		setIf(nl, "text", l.Description.Text)
		setIf(nl, "contents", l.Description.Contents)
		lines = append(lines, nl.String())
	}
	for _, p := range l.Parameters {
		nl := fieldNamelist("parameter", &p.Field)
		if p.HasFixedValue {
			nl.Set("fixed_value", p.FixedValue)
		}
		lines = append(lines, nl.String())
	}
	for _, a := range l.Arrays {
		nl := fieldNamelist("array", &a.Field)
		setIf(nl, "group_name", a.GroupName)
		if a.FieldLength != 0 {
			nl.Set("field_length", strconv.Itoa(a.FieldLength))
		}
		nl.Set("dimensions", strconv.Itoa(a.Dimensions))
		lines = append(lines, nl.String())
	}
	for _, c := range l.Columns {
		nl := fieldNamelist("column", &c.Field)
		if c.FieldLength != 0 {
			nl.Set("field_length", strconv.Itoa(c.FieldLength))
		}
		lines = append(lines, nl.String())
	}
	for _, a := range l.Associates {
		nl := &namelist.Namelist{Group: "associate"}
		nl.Set("filename", a.Filename)
		setIf(nl, "path", a.Path)
		setIf(nl, "description", a.Description)
		setIf(nl, "contents", a.Contents)
		if a.SDDS {
			nl.Set("sdds", "1")
		}
		lines = append(lines, nl.String())
	}
	lines = append(lines, dataNamelist(&l.Data).String())

	b := stringpool.GetBuilder(stringpool.Medium)
	defer stringpool.PutBuilder(b, stringpool.Medium)
	for _, line := range lines {
		b.WriteString(line)
		_ = b.WriteByte('\n')
	}
	if _, err := w.Write(b.Bytes()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransport, "failed to write header")
	}
	return nil
}

func setIf(nl *namelist.Namelist, name, value string) {
	if value != "" {
		nl.Set(name, value)
	}
}

func fieldNamelist(group string, f *layout.Field) *namelist.Namelist {
	nl := &namelist.Namelist{Group: group}
	nl.Set("name", f.Name)
	setIf(nl, "symbol", f.Symbol)
	setIf(nl, "units", f.Units)
	setIf(nl, "description", f.Description)
	setIf(nl, "format_string", f.FormatString)
	nl.Set("type", f.Type.String())
	return nl
}

func dataNamelist(d *layout.DataMode) *namelist.Namelist {
	nl := &namelist.Namelist{Group: "data"}
	nl.Set("mode", d.Mode.String())
	if d.LinesPerRow > 1 {
		nl.Set("lines_per_row", strconv.Itoa(d.LinesPerRow))
	}
	if d.NoRowCounts {
		nl.Set("no_row_counts", "1")
	}
	if d.AdditionalHeaderLines > 0 {
		nl.Set("additional_header_lines", strconv.Itoa(d.AdditionalHeaderLines))
	}
	if d.ColumnMajor {
		nl.Set("column_major_order", "1")
	}
	return nl
}

// HeaderOptions controls ReadHeader
type HeaderOptions struct {
	// Open resolves &include file names; nil rejects includes
	Open func(name string) (io.ReadCloser, error)
	// OnComment receives comment lines other than the known directives
	OnComment func(text string)
}

// ReadHeader decodes a header and returns the committed layout. The reader is
// left at the first byte of page data.
func ReadHeader(r *Reader, opts HeaderOptions) (*layout.Layout, error) {
	first, err := r.ReadLine()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New(errors.ErrorTypeProtocol, "empty input: no header")
		}
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to read header")
	}
	version, err := parseVersion(first)
	if err != nil {
		return nil, err
	}
	l := layout.New()
	l.Validity = layout.ValidityAllowAny
	l.Version = version
	l.Data.Endianness = layout.EndianNative

	done, err := readDeclarations(namelist.NewScanner(r), l, opts, 0)
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, errors.New(errors.ErrorTypeProtocol, "header ended without a &data declaration")
	}
	if l.Data.Mode == layout.ModeASCII {
		for i := 0; i < l.Data.AdditionalHeaderLines; i++ {
			if _, err := r.ReadLine(); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeProtocol, "missing additional header lines")
			}
		}
	}
	l.Commit()
	return l, nil
}

func parseVersion(line string) (int, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, headerMagic) {
		return 0, errors.Newf(errors.ErrorTypeProtocol, "not an SDDS stream: first line %q", line)
	}
	version, err := strconv.Atoi(strings.TrimSpace(line[len(headerMagic):]))
	if err != nil || version < 1 {
		return 0, errors.Newf(errors.ErrorTypeProtocol, "invalid protocol version in %q", line)
	}
	if version > layout.MaxVersion {
		return 0, errors.Newf(errors.ErrorTypeProtocol, "protocol version %d is newer than %d", version, layout.MaxVersion)
	}
	return version, nil
}

// readDeclarations consumes items until &data; done reports whether it was seen
func readDeclarations(sc *namelist.Scanner, l *layout.Layout, opts HeaderOptions, depth int) (bool, error) {
	for {
		item, err := sc.Next()
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			if errors.TypeOf(err) == "" {
				return false, errors.Wrap(err, errors.ErrorTypeTransport, "failed to read header")
			}
			return false, err
		}
		if item.Namelist == nil {
			applyDirective(l, item.Comment, opts)
			continue
		}
		nl := item.Namelist
		switch nl.Group {
		case "description":
			l.Description.Text, _ = nl.Get("text")
			l.Description.Contents, _ = nl.Get("contents")
		case "parameter":
			err = declareParameter(l, nl)
		case "column":
			err = declareColumn(l, nl)
		case "array":
			err = declareArray(l, nl)
		case "associate":
			err = declareAssociate(l, nl)
		case "include":
			err = include(l, nl, opts, depth)
		case "data":
			return true, declareData(l, nl)
		default:
			err = errors.Newf(errors.ErrorTypeProtocol, "unknown declaration &%s", nl.Group)
		}
		if err != nil {
			return false, err
		}
	}
}

func applyDirective(l *layout.Layout, comment string, opts HeaderOptions) {
	switch strings.TrimSpace(comment) {
	case DirectiveBigEndian:
		l.Data.Endianness = layout.EndianBig
	case DirectiveLittleEndian:
		l.Data.Endianness = layout.EndianLittle
	case DirectiveFixedRowCount:
		l.FixedRowCount = true
	default:
		if opts.OnComment != nil {
			opts.OnComment(comment)
		}
	}
}

func include(l *layout.Layout, nl *namelist.Namelist, opts HeaderOptions, depth int) error {
	name, _ := nl.Get("filename")
	if name == "" {
		return errors.New(errors.ErrorTypeProtocol, "&include requires a filename")
	}
	if opts.Open == nil {
		return errors.Newf(errors.ErrorTypeTransport, "cannot include %q: no file access", name)
	}
	if depth >= maxIncludeDepth {
		return errors.Newf(errors.ErrorTypeProtocol, "includes nested deeper than %d at %q", maxIncludeDepth, name)
	}
	rc, err := opts.Open(name)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeTransport, "cannot include %q", name)
	}
	defer rc.Close()
	done, err := readDeclarations(namelist.NewScanner(NewReader(rc, 0)), l, opts, depth+1)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeProtocol, "in included file %q", name)
	}
	if done {
		return errors.Newf(errors.ErrorTypeProtocol, "included file %q may not declare &data", name)
	}
	return nil
}

func readField(nl *namelist.Namelist, f *layout.Field) error {
	f.Name, _ = nl.Get("name")
	f.Symbol, _ = nl.Get("symbol")
	f.Units, _ = nl.Get("units")
	f.Description, _ = nl.Get("description")
	f.FormatString, _ = nl.Get("format_string")
	typeName, ok := nl.Get("type")
	if !ok {
		return errors.Newf(errors.ErrorTypeProtocol, "&%s %q has no type", nl.Group, f.Name)
	}
	t, err := scalar.ParseType(typeName)
	if err != nil {
		return err
	}
	f.Type = t
	return nil
}

func intField(nl *namelist.Namelist, name string, def int) (int, error) {
	text, ok := nl.Get(name)
	if !ok || text == "" {
		return def, nil
	}
	v, err := strconv.Atoi(text)
	if err != nil {
		return 0, errors.Newf(errors.ErrorTypeProtocol, "&%s field %s=%q is not an integer", nl.Group, name, text)
	}
	return v, nil
}

func boolField(nl *namelist.Namelist, name string) (bool, error) {
	v, err := intField(nl, name, 0)
	return v != 0, err
}

func declareParameter(l *layout.Layout, nl *namelist.Namelist) error {
	var p layout.Parameter
	if err := readField(nl, &p.Field); err != nil {
		return err
	}
	p.FixedValue, p.HasFixedValue = nl.Get("fixed_value")
	_, err := l.DefineParameter(p)
	return err
}

func declareColumn(l *layout.Layout, nl *namelist.Namelist) error {
	var c layout.Column
	if err := readField(nl, &c.Field); err != nil {
		return err
	}
	var err error
	if c.FieldLength, err = intField(nl, "field_length", 0); err != nil {
		return err
	}
	_, err = l.DefineColumn(c)
	return err
}

func declareArray(l *layout.Layout, nl *namelist.Namelist) error {
	var a layout.Array
	if err := readField(nl, &a.Field); err != nil {
		return err
	}
	a.GroupName, _ = nl.Get("group_name")
	var err error
	if a.FieldLength, err = intField(nl, "field_length", 0); err != nil {
		return err
	}
	if a.Dimensions, err = intField(nl, "dimensions", 1); err != nil {
		return err
	}
	_, err = l.DefineArray(a)
	return err
}

func declareAssociate(l *layout.Layout, nl *namelist.Namelist) error {
	var a layout.Associate
	a.Filename, _ = nl.Get("filename")
	a.Path, _ = nl.Get("path")
	a.Description, _ = nl.Get("description")
	a.Contents, _ = nl.Get("contents")
	var err error
	if a.SDDS, err = boolField(nl, "sdds"); err != nil {
		return err
	}
	_, err = l.DefineAssociate(a)
	return err
}

func declareData(l *layout.Layout, nl *namelist.Namelist) error {
	d := &l.Data
	modeName, ok := nl.Get("mode")
	if !ok {
		modeName = "ascii"
	}
	mode, err := layout.ParseMode(strings.ToLower(modeName))
	if err != nil {
		return err
	}
	d.Mode = mode
	if d.LinesPerRow, err = intField(nl, "lines_per_row", 1); err != nil {
		return err
	}
	if d.NoRowCounts, err = boolField(nl, "no_row_counts"); err != nil {
		return err
	}
	if d.AdditionalHeaderLines, err = intField(nl, "additional_header_lines", 0); err != nil {
		return err
	}
	if d.ColumnMajor, err = boolField(nl, "column_major_order"); err != nil {
		return err
	}
	if d.LinesPerRow < 1 {
		return errors.Newf(errors.ErrorTypeProtocol, "lines_per_row must be positive, got %d", d.LinesPerRow)
	}
	return nil
}
