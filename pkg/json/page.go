package json

import (
	"bytes"
	"math"
	"strconv"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/sdds/pkg/layout"
	"github.com/ajitpratap0/sdds/pkg/scalar"
	"github.com/ajitpratap0/sdds/pkg/table"
)

// Row is one row of interest. It marshals as an object whose keys follow
// the column order of the page rather than alphabetical order.
type Row struct {
	Names  []string
	Values []any
}

// MarshalJSON implements json.Marshaler
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.Names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := gojson.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := gojson.Marshal(r.Values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ArrayDocument is the JSON form of an array value
type ArrayDocument struct {
	Dims   []int `json:"dims"`
	Values []any `json:"values"`
}

// PageDocument is the JSON form of one page: every parameter and array, and
// the columns of interest of every row of interest.
type PageDocument struct {
	Page       int                      `json:"page"`
	Parameters map[string]any           `json:"parameters,omitempty"`
	Arrays     map[string]ArrayDocument `json:"arrays,omitempty"`
	Columns    []string                 `json:"columns"`
	Rows       []Row                    `json:"rows"`
}

// NewPageDocument captures the current content of a page
func NewPageDocument(p *table.Page) (*PageDocument, error) {
	l := p.Layout()
	doc := &PageDocument{
		Page:    p.PageNumber(),
		Columns: p.SelectedColumnNames(),
	}
	if len(l.Parameters) > 0 {
		doc.Parameters = make(map[string]any, len(l.Parameters))
		for i, def := range l.Parameters {
			v, err := p.Parameter(table.ByIndex(i))
			if err != nil {
				return nil, err
			}
			doc.Parameters[def.Name] = Value(v)
		}
	}
	if len(l.Arrays) > 0 {
		doc.Arrays = make(map[string]ArrayDocument, len(l.Arrays))
		for i, def := range l.Arrays {
			a, err := p.Array(table.ByIndex(i))
			if err != nil {
				return nil, err
			}
			values := make([]any, a.Elements())
			for j := range values {
				values[j] = Value(a.Data.Value(j))
			}
			doc.Arrays[def.Name] = ArrayDocument{Dims: append([]int{}, a.Dims...), Values: values}
		}
	}
	matrix, err := p.Matrix()
	if err != nil {
		return nil, err
	}
	doc.Rows = make([]Row, len(matrix))
	for i, values := range matrix {
		for j, v := range values {
			values[j] = Value(v)
		}
		doc.Rows[i] = Row{Names: doc.Columns, Values: values}
	}
	return doc, nil
}

// Value converts a page value into one JSON can carry. Characters become
// one-character strings and non-finite floats become the strings "NaN",
// "+Inf" and "-Inf".
func Value(v any) any {
	switch x := v.(type) {
	case scalar.LongDouble:
		return float(float64(x))
	case float64:
		return float(x)
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return float(float64(x))
		}
		return x
	case byte:
		return string([]byte{x})
	}
	return v
}

func float(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return f
}

// FieldDocument describes one parameter, column or array definition
type FieldDocument struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Units       string `json:"units,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
	Description string `json:"description,omitempty"`
	Format      string `json:"format,omitempty"`
	FixedValue  string `json:"fixed_value,omitempty"`
	Dimensions  int    `json:"dimensions,omitempty"`
}

// LayoutDocument is the JSON form of a layout
type LayoutDocument struct {
	Version     int             `json:"version"`
	Mode        string          `json:"mode"`
	Description string          `json:"description,omitempty"`
	Contents    string          `json:"contents,omitempty"`
	Endianness  string          `json:"endianness,omitempty"`
	ColumnMajor bool            `json:"column_major,omitempty"`
	NoRowCounts bool            `json:"no_row_counts,omitempty"`
	Parameters  []FieldDocument `json:"parameters,omitempty"`
	Arrays      []FieldDocument `json:"arrays,omitempty"`
	Columns     []FieldDocument `json:"columns,omitempty"`
}

// NewLayoutDocument summarizes a layout
func NewLayoutDocument(l *layout.Layout) *LayoutDocument {
	doc := &LayoutDocument{
		Version:     l.Version,
		Mode:        l.Data.Mode.String(),
		Description: l.Description.Text,
		Contents:    l.Description.Contents,
		ColumnMajor: l.Data.ColumnMajor,
		NoRowCounts: l.Data.NoRowCounts,
	}
	if l.Data.Mode == layout.ModeBinary {
		doc.Endianness = l.Data.Endianness.Resolve().String()
	}
	for _, p := range l.Parameters {
		f := fieldDocument(&p.Field)
		f.FixedValue = p.FixedValue
		doc.Parameters = append(doc.Parameters, f)
	}
	for _, a := range l.Arrays {
		f := fieldDocument(&a.Field)
		f.Dimensions = a.Dimensions
		doc.Arrays = append(doc.Arrays, f)
	}
	for _, c := range l.Columns {
		doc.Columns = append(doc.Columns, fieldDocument(&c.Field))
	}
	return doc
}

func fieldDocument(f *layout.Field) FieldDocument {
	return FieldDocument{
		Name:        f.Name,
		Type:        f.Type.String(),
		Units:       f.Units,
		Symbol:      f.Symbol,
		Description: f.Description,
		Format:      f.FormatString,
	}
}
