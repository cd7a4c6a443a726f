package sheet

import (
	"bytes"
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// LoadError reports a spreadsheet that could not be opened or parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return "sheet: load " + e.Path + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Supported reports whether the file extension can be loaded.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".csv":
		return true
	default:
		return false
	}
}

// Load reads the first sheet of the spreadsheet at path.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: eris.Wrap(err, "read file")}
	}
	return LoadReader(path, bytes.NewReader(data))
}

// LoadReader reads a spreadsheet from r. The name is only used to pick the
// format from its extension and to label errors.
func LoadReader(name string, r io.Reader) (*Table, error) {
	var (
		t   *Table
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".xlsx":
		t, err = readXLSX(r)
	case ".csv":
		t, err = readCSV(r)
	default:
		err = eris.Errorf("unsupported extension %q", ext)
	}
	if err != nil {
		return nil, &LoadError{Path: name, Err: err}
	}

	zap.L().Debug("sheet: loaded table",
		zap.String("file", filepath.Base(name)),
		zap.Int("rows", t.Rows()),
		zap.Int("columns", len(t.Columns)),
	)
	return t, nil
}

func readXLSX(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: read")
	}
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	sheet := f.Sheets[0]

	var header []string
	var rows [][]Value
	for i, row := range sheet.Rows {
		if row == nil {
			continue
		}
		if i == 0 {
			header = make([]string, len(row.Cells))
			for j, cell := range row.Cells {
				header[j] = cell.String()
			}
			continue
		}
		values := make([]Value, len(row.Cells))
		for j, cell := range row.Cells {
			values[j] = xlsxValue(cell, f.Date1904)
		}
		rows = append(rows, values)
	}
	return NewTable(header, dropBlankRows(rows)), nil
}

func xlsxValue(cell *xlsx.Cell, date1904 bool) Value {
	if cell == nil || strings.TrimSpace(cell.Value) == "" {
		return Missing()
	}
	switch cell.Type() {
	case xlsx.CellTypeBool:
		return Text(cell.String())
	case xlsx.CellTypeError:
		return Missing()
	}
	if cell.IsTime() {
		if t, err := cell.GetTime(date1904); err == nil {
			return Date(t)
		}
	}
	return coerce(cell.Value)
}

func readCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "csv: read")
	}
	if len(records) == 0 {
		return NewTable(nil, nil), nil
	}

	rows := make([][]Value, 0, len(records)-1)
	for _, rec := range records[1:] {
		values := make([]Value, len(rec))
		for j, s := range rec {
			values[j] = coerce(s)
		}
		rows = append(rows, values)
	}
	return NewTable(records[0], dropBlankRows(rows)), nil
}

// coerce turns raw cell text into the most specific value.
func coerce(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Missing()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return Number(f)
	}
	return Text(raw)
}

func dropBlankRows(rows [][]Value) [][]Value {
	out := rows[:0]
	for _, row := range rows {
		for _, v := range row {
			if !v.IsMissing() {
				out = append(out, row)
				break
			}
		}
	}
	return out
}
