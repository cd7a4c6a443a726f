// Package sheet loads uploaded spreadsheets into an in-memory table of typed cells.
package sheet

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the type held by a Value.
type Kind uint8

const (
	KindMissing Kind = iota
	KindNumber
	KindText
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindDate:
		return "date"
	default:
		return "missing"
	}
}

// Value is a single cell. The zero Value is missing.
type Value struct {
	kind Kind
	num  float64
	text string
	date time.Time
}

// Missing returns an empty cell.
func Missing() Value { return Value{} }

// Number returns a numeric cell. NaN is stored as missing.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// Text returns a text cell.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Date returns a date/time cell.
func Date(t time.Time) Value { return Value{kind: KindDate, date: t} }

// Kind returns the cell type.
func (v Value) Kind() Kind { return v.kind }

// IsMissing reports whether the cell is empty.
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// Float returns the numeric value if the cell is a number.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Time returns the timestamp if the cell was loaded as a date.
func (v Value) Time() (time.Time, bool) {
	if v.kind != KindDate {
		return time.Time{}, false
	}
	return v.date, true
}

// Timestamp interprets the cell as a point in time. Date cells always succeed;
// text cells succeed when they match one of the accepted layouts. Numbers are
// never treated as timestamps.
func (v Value) Timestamp() (time.Time, bool) {
	switch v.kind {
	case KindDate:
		return v.date, true
	case KindText:
		return ParseTimestamp(v.text)
	default:
		return time.Time{}, false
	}
}

// String renders the cell the way it is used as a grouping key.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	case KindDate:
		return v.date.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// Interface returns a JSON-friendly scalar: float64, string, or an RFC 3339
// string for dates. Missing cells render as "".
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindText:
		return v.text
	case KindDate:
		return v.date.Format(time.RFC3339)
	default:
		return ""
	}
}

// timestampLayouts are tried in order when parsing text cells.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04",
	"1/2/2006 15:04:05",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01",
}

// ParseTimestamp parses s against the accepted layouts.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Column is a named sequence of cells aligned by row index.
type Column struct {
	Name   string
	Values []Value
}

// Missing returns the count of missing cells.
func (c *Column) Missing() int {
	n := 0
	for _, v := range c.Values {
		if v.IsMissing() {
			n++
		}
	}
	return n
}

// Floats returns the non-missing numeric values in row order.
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if f, ok := v.Float(); ok {
			out = append(out, f)
		}
	}
	return out
}

// Table is an ordered set of equal-length columns.
type Table struct {
	Columns []*Column
	rows    int
	index   map[string]int
}

// NewTable builds a table from a header and row-major cells. Short rows are
// padded with missing cells and cells beyond the header are dropped.
func NewTable(header []string, rows [][]Value) *Table {
	names := uniqueNames(header)
	t := &Table{
		Columns: make([]*Column, len(names)),
		rows:    len(rows),
		index:   make(map[string]int, len(names)),
	}
	for i, name := range names {
		col := &Column{Name: name, Values: make([]Value, len(rows))}
		for r, row := range rows {
			if i < len(row) {
				col.Values[r] = row[i]
			}
		}
		t.Columns[i] = col
		t.index[name] = i
	}
	return t
}

// Rows returns the row count.
func (t *Table) Rows() int { return t.rows }

// Names returns column names in table order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	return t.Columns[i]
}

// uniqueNames fills blank headers and de-duplicates repeated ones. A repeat
// takes the next ".N" suffix that no other header already uses.
func uniqueNames(header []string) []string {
	names := make([]string, len(header))
	taken := make(map[string]bool, len(header))
	next := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if taken[name] {
			base := name
			for taken[name] {
				next[base]++
				name = base + "." + strconv.Itoa(next[base])
			}
		}
		taken[name] = true
		names[i] = name
	}
	return names
}
