package output

import (
	"fmt"
	"strconv"
)

// CellFormat is the rendering hint attached to a cell.
type CellFormat int

const (
	// Auto prints the value with its default representation.
	Auto CellFormat = iota
	// Fixed prints floats with a fixed number of decimals.
	Fixed
	// Scientific prints floats in exponent notation.
	Scientific
	// Percent prints floats with a fixed number of decimals. The value is already in percent.
	Percent
)

// Cell is a single typed table value.
type Cell struct {
	Value     any
	Format    CellFormat
	Precision int
}

// Text returns a string cell.
func Text(s string) Cell {
	return Cell{Value: s}
}

// Int returns an integer cell.
func Int(v int64) Cell {
	return Cell{Value: v}
}

// Uint returns an unsigned integer cell.
func Uint(v uint64) Cell {
	return Cell{Value: v}
}

// Float returns a fixed-precision cell.
func Float(v float64, precision int) Cell {
	return Cell{Value: v, Format: Fixed, Precision: precision}
}

// Sci returns a scientific-notation cell.
func Sci(v float64, precision int) Cell {
	return Cell{Value: v, Format: Scientific, Precision: precision}
}

// Pct returns a percentage cell.
func Pct(v float64, precision int) Cell {
	return Cell{Value: v, Format: Percent, Precision: precision}
}

// Raw returns the underlying value.
func (c Cell) Raw() any {
	return c.Value
}

// String renders the cell according to its format hint.
func (c Cell) String() string {
	f, isFloat := c.Value.(float64)
	switch {
	case isFloat && c.Format == Fixed:
		return strconv.FormatFloat(f, 'f', c.Precision, 64)
	case isFloat && c.Format == Scientific:
		return strconv.FormatFloat(f, 'e', c.Precision, 64)
	case isFloat && c.Format == Percent:
		return strconv.FormatFloat(f, 'f', c.Precision, 64)
	case isFloat:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	if c.Value == nil {
		return ""
	}
	return fmt.Sprint(c.Value)
}

// Row is an ordered sequence of cells.
type Row []Cell

// Strings renders every cell of the row.
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.String()
	}
	return out
}

// Table is a titled grid of rows under a header.
type Table struct {
	Title   string
	Headers []string
	Rows    []Row
}

// NewTable creates an empty table with the given headers.
func NewTable(title string, headers ...string) *Table {
	return &Table{Title: title, Headers: headers}
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...Cell) {
	t.Rows = append(t.Rows, Row(cells))
}
