// Package layout holds the schema of an SDDS file: the ordered parameter,
// column, array and associate definitions plus the data-mode metadata that
// governs how pages are framed.
//
// A Layout is built by declaring definitions (on output) or by decoding a
// header (on input). Names are unique per kind; duplicates are found through
// a sorted index maintained by binary-search insertion. Once committed the
// layout is frozen, except for units conversions which may be patched until
// the first page is decoded.
package layout

import (
	"encoding/binary"
	"sort"

	"github.com/ajitpratap0/sdds/pkg/errors"
	"github.com/ajitpratap0/sdds/pkg/scalar"
)

// Kind distinguishes the definition collections of a layout
type Kind int

const (
	KindParameter Kind = iota + 1
	KindColumn
	KindArray
	KindAssociate
)

func (k Kind) String() string {
	switch k {
	case KindParameter:
		return "parameter"
	case KindColumn:
		return "column"
	case KindArray:
		return "array"
	case KindAssociate:
		return "associate"
	}
	return "unknown"
}

// MaxVersion is the newest protocol version this package reads and writes
const MaxVersion = 5

// Field carries the attributes shared by parameters, columns and arrays
type Field struct {
	Name         string
	Symbol       string
	Units        string
	Description  string
	FormatString string
	Type         scalar.Type

	conversion float64
}

// Conversion returns the factor applied to decoded values, 1 when none is set
func (f *Field) Conversion() float64 {
	if f.conversion == 0 {
		return 1
	}
	return f.conversion
}

// Parameter is a scalar value stored once per page
type Parameter struct {
	Field
	FixedValue    string
	HasFixedValue bool
}

// Column is one column of the row-oriented table
type Column struct {
	Field
	// FieldLength is the ASCII field width; 0 means blank-delimited
	FieldLength int
}

// Array is a multi-dimensional array stored once per page
type Array struct {
	Field
	GroupName   string
	FieldLength int
	Dimensions  int
}

// Associate references an auxiliary file; it is metadata only
type Associate struct {
	Filename    string
	Path        string
	Description string
	Contents    string
	SDDS        bool
}

// Description is the free-text description of the file
type Description struct {
	Text     string
	Contents string
}

// Mode is the page encoding
type Mode int

const (
	ModeBinary Mode = 1
	ModeASCII  Mode = 2
)

func (m Mode) String() string {
	switch m {
	case ModeBinary:
		return "binary"
	case ModeASCII:
		return "ascii"
	}
	return "unknown"
}

// ParseMode maps a mode keyword to a Mode
func ParseMode(s string) (Mode, error) {
	switch s {
	case "binary":
		return ModeBinary, nil
	case "ascii":
		return ModeASCII, nil
	}
	return 0, errors.Newf(errors.ErrorTypeProtocol, "unknown data mode %q", s)
}

// Endianness is the declared byte order of binary data
type Endianness int

const (
	EndianNative Endianness = iota
	EndianBig
	EndianLittle
)

// Order resolves the endianness to a binary.ByteOrder
func (e Endianness) Order() binary.ByteOrder {
	switch e {
	case EndianBig:
		return binary.BigEndian
	case EndianLittle:
		return binary.LittleEndian
	}
	if HostBigEndian() {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Resolve replaces EndianNative with the host byte order
func (e Endianness) Resolve() Endianness {
	if e != EndianNative {
		return e
	}
	if HostBigEndian() {
		return EndianBig
	}
	return EndianLittle
}

func (e Endianness) String() string {
	switch e.Resolve() {
	case EndianBig:
		return "big-endian"
	default:
		return "little-endian"
	}
}

// HostBigEndian reports whether the host stores integers big-endian
func HostBigEndian() bool {
	var probe [2]byte
	binary.NativeEndian.PutUint16(probe[:], 1)
	return probe[0] == 0
}

// DataMode is the &data declaration
type DataMode struct {
	Mode                  Mode
	LinesPerRow           int
	NoRowCounts           bool
	AdditionalHeaderLines int
	ColumnMajor           bool
	Endianness            Endianness
}

// Layout is the complete schema of a file
type Layout struct {
	Version     int
	Description Description
	Parameters  []*Parameter
	Columns     []*Column
	Arrays      []*Array
	Associates  []*Associate
	Data        DataMode

	// FixedRowCount marks files whose row counts are rewritten in place
	FixedRowCount     bool
	FixedRowIncrement int64

	Validity NameValidity

	parameterIndex nameIndex
	columnIndex    nameIndex
	arrayIndex     nameIndex
	associateIndex nameIndex

	committed    bool
	materialized bool
}

// New returns an empty binary-mode layout using the strict name grammar
func New() *Layout {
	return &Layout{
		Version: 1,
		Data: DataMode{
			Mode:        ModeBinary,
			LinesPerRow: 1,
		},
		FixedRowIncrement: 500,
	}
}

type nameEntry struct {
	name  string
	index int
}

// nameIndex is kept sorted by name so lookups and duplicate checks are
// binary searches.
type nameIndex []nameEntry

func (x nameIndex) find(name string) int {
	i := sort.Search(len(x), func(i int) bool { return x[i].name >= name })
	if i < len(x) && x[i].name == name {
		return x[i].index
	}
	return -1
}

func (x *nameIndex) insert(name string, index int) bool {
	i := sort.Search(len(*x), func(i int) bool { return (*x)[i].name >= name })
	if i < len(*x) && (*x)[i].name == name {
		return false
	}
	*x = append(*x, nameEntry{})
	copy((*x)[i+1:], (*x)[i:])
	(*x)[i] = nameEntry{name: name, index: index}
	return true
}

// Committed reports whether the layout has been frozen
func (l *Layout) Committed() bool { return l.committed }

// Commit freezes the definitions and settles the protocol version
func (l *Layout) Commit() {
	if v := l.MinimumVersion(); v > l.Version {
		l.Version = v
	}
	if l.Data.LinesPerRow < 1 {
		l.Data.LinesPerRow = 1
	}
	l.committed = true
}

// MarkMaterialized records that page data has been decoded under this layout;
// units conversions can no longer be changed afterwards.
func (l *Layout) MarkMaterialized() { l.materialized = true }

// Materialized reports whether page data has been decoded
func (l *Layout) Materialized() bool { return l.materialized }

func (l *Layout) checkOpen(kind Kind, name string) error {
	if l.committed {
		return errors.Newf(errors.ErrorTypeState, "cannot define %s %q: layout already committed", kind, name)
	}
	if !IsValidName(name, l.Validity) {
		return errors.Newf(errors.ErrorTypeName, "invalid %s name %q", kind, name)
	}
	return nil
}

func checkType(kind Kind, f *Field) error {
	if !f.Type.IsValid() {
		return errors.Newf(errors.ErrorTypeType, "%s %q has invalid type %d", kind, f.Name, int(f.Type))
	}
	return nil
}

// DefineParameter adds a parameter definition and returns its index
func (l *Layout) DefineParameter(p Parameter) (int, error) {
	if err := l.checkOpen(KindParameter, p.Name); err != nil {
		return -1, err
	}
	if err := checkType(KindParameter, &p.Field); err != nil {
		return -1, err
	}
	if p.HasFixedValue {
		if _, err := scalar.Parse(p.FixedValue, p.Type); err != nil {
			return -1, errors.Wrapf(err, errors.ErrorTypeType, "fixed value of parameter %q", p.Name)
		}
	}
	index := len(l.Parameters)
	if !l.parameterIndex.insert(p.Name, index) {
		return -1, errors.Newf(errors.ErrorTypeName, "parameter %q already exists", p.Name)
	}
	def := p
	l.Parameters = append(l.Parameters, &def)
	return index, nil
}

// DefineColumn adds a column definition and returns its index
func (l *Layout) DefineColumn(c Column) (int, error) {
	if err := l.checkOpen(KindColumn, c.Name); err != nil {
		return -1, err
	}
	if err := checkType(KindColumn, &c.Field); err != nil {
		return -1, err
	}
	if c.FieldLength < 0 {
		return -1, errors.Newf(errors.ErrorTypeBounds, "column %q has negative field length", c.Name)
	}
	index := len(l.Columns)
	if !l.columnIndex.insert(c.Name, index) {
		return -1, errors.Newf(errors.ErrorTypeName, "column %q already exists", c.Name)
	}
	def := c
	l.Columns = append(l.Columns, &def)
	return index, nil
}

// DefineArray adds an array definition and returns its index.
// Zero dimensions default to one.
func (l *Layout) DefineArray(a Array) (int, error) {
	if err := l.checkOpen(KindArray, a.Name); err != nil {
		return -1, err
	}
	if err := checkType(KindArray, &a.Field); err != nil {
		return -1, err
	}
	if a.Dimensions == 0 {
		a.Dimensions = 1
	}
	if a.Dimensions < 0 {
		return -1, errors.Newf(errors.ErrorTypeBounds, "array %q has %d dimensions", a.Name, a.Dimensions)
	}
	index := len(l.Arrays)
	if !l.arrayIndex.insert(a.Name, index) {
		return -1, errors.Newf(errors.ErrorTypeName, "array %q already exists", a.Name)
	}
	def := a
	l.Arrays = append(l.Arrays, &def)
	return index, nil
}

// DefineAssociate adds an associate; associates are keyed by file name
func (l *Layout) DefineAssociate(a Associate) (int, error) {
	if l.committed {
		return -1, errors.Newf(errors.ErrorTypeState, "cannot define associate %q: layout already committed", a.Filename)
	}
	if a.Filename == "" {
		return -1, errors.New(errors.ErrorTypeName, "associate requires a filename")
	}
	index := len(l.Associates)
	if !l.associateIndex.insert(a.Filename, index) {
		return -1, errors.Newf(errors.ErrorTypeName, "associate %q already exists", a.Filename)
	}
	def := a
	l.Associates = append(l.Associates, &def)
	return index, nil
}

// DefineSimpleParameter defines a parameter from a name, units and type
func (l *Layout) DefineSimpleParameter(name, units string, t scalar.Type) (int, error) {
	return l.DefineParameter(Parameter{Field: Field{Name: name, Units: units, Type: t}})
}

// DefineSimpleColumn defines a column from a name, units and type
func (l *Layout) DefineSimpleColumn(name, units string, t scalar.Type) (int, error) {
	return l.DefineColumn(Column{Field: Field{Name: name, Units: units, Type: t}})
}

// DefineSimpleArray defines an array from a name, units, type and dimension count
func (l *Layout) DefineSimpleArray(name, units string, t scalar.Type, dimensions int) (int, error) {
	return l.DefineArray(Array{Field: Field{Name: name, Units: units, Type: t}, Dimensions: dimensions})
}

// ParameterIndex returns the index of a parameter, or -1
func (l *Layout) ParameterIndex(name string) int { return l.parameterIndex.find(name) }

// ColumnIndex returns the index of a column, or -1
func (l *Layout) ColumnIndex(name string) int { return l.columnIndex.find(name) }

// ArrayIndex returns the index of an array, or -1
func (l *Layout) ArrayIndex(name string) int { return l.arrayIndex.find(name) }

// AssociateIndex returns the index of an associate, or -1
func (l *Layout) AssociateIndex(filename string) int { return l.associateIndex.find(filename) }

// Parameter returns the named parameter definition or nil
func (l *Layout) Parameter(name string) *Parameter {
	if i := l.ParameterIndex(name); i >= 0 {
		return l.Parameters[i]
	}
	return nil
}

// Column returns the named column definition or nil
func (l *Layout) Column(name string) *Column {
	if i := l.ColumnIndex(name); i >= 0 {
		return l.Columns[i]
	}
	return nil
}

// Array returns the named array definition or nil
func (l *Layout) Array(name string) *Array {
	if i := l.ArrayIndex(name); i >= 0 {
		return l.Arrays[i]
	}
	return nil
}

// ParameterNames returns the parameter names in definition order
func (l *Layout) ParameterNames() []string {
	out := make([]string, len(l.Parameters))
	for i, p := range l.Parameters {
		out[i] = p.Name
	}
	return out
}

// ColumnNames returns the column names in definition order
func (l *Layout) ColumnNames() []string {
	out := make([]string, len(l.Columns))
	for i, c := range l.Columns {
		out[i] = c.Name
	}
	return out
}

// ArrayNames returns the array names in definition order
func (l *Layout) ArrayNames() []string {
	out := make([]string, len(l.Arrays))
	for i, a := range l.Arrays {
		out[i] = a.Name
	}
	return out
}

// FixedValueOf materializes the constant of a fixed-value parameter
func (l *Layout) FixedValueOf(index int) (any, error) {
	if index < 0 || index >= len(l.Parameters) {
		return nil, errors.Newf(errors.ErrorTypeBounds, "parameter index %d out of range", index)
	}
	p := l.Parameters[index]
	if !p.HasFixedValue {
		return nil, errors.Newf(errors.ErrorTypeState, "parameter %q has no fixed value", p.Name)
	}
	return scalar.Parse(p.FixedValue, p.Type)
}

// SetUnitsConversion relabels the units of a numeric parameter, column or
// array and records a factor applied to values as pages are decoded. It is
// the only change allowed after commit and must precede the first page read.
// An empty oldUnits skips the check of the current units.
func (l *Layout) SetUnitsConversion(kind Kind, name, newUnits, oldUnits string, factor float64) error {
	if l.materialized {
		return errors.Newf(errors.ErrorTypeState, "cannot convert units of %s %q: data already read", kind, name)
	}
	var f *Field
	switch kind {
	case KindParameter:
		if p := l.Parameter(name); p != nil {
			f = &p.Field
		}
	case KindColumn:
		if c := l.Column(name); c != nil {
			f = &c.Field
		}
	case KindArray:
		if a := l.Array(name); a != nil {
			f = &a.Field
		}
	}
	if f == nil {
		return errors.Newf(errors.ErrorTypeName, "unknown %s %q", kind, name)
	}
	if !f.Type.IsNumeric() {
		return errors.Newf(errors.ErrorTypeType, "%s %q is not numeric", kind, name)
	}
	if oldUnits != "" && f.Units != oldUnits {
		return errors.Newf(errors.ErrorTypeName, "%s %q has units %q, not %q", kind, name, f.Units, oldUnits)
	}
	if factor == 0 {
		return errors.Newf(errors.ErrorTypeBounds, "zero conversion factor for %s %q", kind, name)
	}
	f.Units = newUnits
	f.conversion = f.Conversion() * factor
	return nil
}

// MinimumVersion returns the lowest protocol version able to represent the
// declared types and data mode.
func (l *Layout) MinimumVersion() int {
	version := 1
	bump := func(t scalar.Type) {
		switch t {
		case scalar.TypeUShort, scalar.TypeULong:
			version = max(version, 2)
		case scalar.TypeLongDouble:
			version = max(version, 4)
		case scalar.TypeLong64, scalar.TypeULong64:
			version = max(version, 5)
		}
	}
	for _, p := range l.Parameters {
		bump(p.Type)
	}
	for _, c := range l.Columns {
		bump(c.Type)
	}
	for _, a := range l.Arrays {
		bump(a.Type)
	}
	if l.Data.ColumnMajor {
		version = max(version, 3)
	}
	return version
}

// Clone returns an uncommitted deep copy, used to start an output file from
// the layout of an input file.
func (l *Layout) Clone() *Layout {
	out := &Layout{
		Version:           l.Version,
		Description:       l.Description,
		Data:              l.Data,
		FixedRowCount:     l.FixedRowCount,
		FixedRowIncrement: l.FixedRowIncrement,
		Validity:          l.Validity,
	}
	for i, p := range l.Parameters {
		def := *p
		out.Parameters = append(out.Parameters, &def)
		out.parameterIndex.insert(def.Name, i)
	}
	for i, c := range l.Columns {
		def := *c
		out.Columns = append(out.Columns, &def)
		out.columnIndex.insert(def.Name, i)
	}
	for i, a := range l.Arrays {
		def := *a
		out.Arrays = append(out.Arrays, &def)
		out.arrayIndex.insert(def.Name, i)
	}
	for i, a := range l.Associates {
		def := *a
		out.Associates = append(out.Associates, &def)
		out.associateIndex.insert(def.Filename, i)
	}
	return out
}
