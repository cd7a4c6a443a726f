package sheet

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

// createTestXLSX writes a single-sheet workbook. Cells may be string,
// float64, int, time.Time or nil (left empty).
func createTestXLSX(t *testing.T, rows [][]any) string {
	t.Helper()
	f := xlsx.NewFile()
	sh, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sh.AddRow()
		for _, v := range rowData {
			cell := row.AddCell()
			switch x := v.(type) {
			case string:
				cell.SetString(x)
			case float64:
				cell.SetFloat(x)
			case int:
				cell.SetInt(x)
			case time.Time:
				cell.SetDateTime(x)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestLoad_XLSXTypes(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	path := createTestXLSX(t, [][]any{
		{"Agent Name", "Loan Amount", "Issued Date", "Note"},
		{"Alice", 1500.5, day, "first"},
		{"Bob", 200, nil, ""},
	})

	tbl, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Rows())
	assert.Equal(t, []string{"Agent Name", "Loan Amount", "Issued Date", "Note"}, tbl.Names())

	assert.Equal(t, KindText, tbl.Column("Agent Name").Values[0].Kind())

	amt, ok := tbl.Column("Loan Amount").Values[0].Float()
	require.True(t, ok)
	assert.InDelta(t, 1500.5, amt, 1e-9)

	issued, ok := tbl.Column("Issued Date").Values[0].Time()
	require.True(t, ok)
	assert.Equal(t, day.Format("2006-01-02"), issued.Format("2006-01-02"))

	assert.True(t, tbl.Column("Issued Date").Values[1].IsMissing())
	assert.True(t, tbl.Column("Note").Values[1].IsMissing(), "empty string becomes missing")
}

func TestLoad_XLSXNumericText(t *testing.T) {
	path := createTestXLSX(t, [][]any{
		{"fee"},
		{"42"},
		{"n/a"},
	})

	tbl, err := Load(path)
	require.NoError(t, err)
	col := tbl.Column("fee")
	assert.Equal(t, KindNumber, col.Values[0].Kind())
	assert.Equal(t, KindText, col.Values[1].Kind())
}

func TestLoad_ShortRowsPadded(t *testing.T) {
	path := createTestXLSX(t, [][]any{
		{"a", "b", "c"},
		{1},
		{1, 2, 3},
	})

	tbl, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Rows())
	assert.True(t, tbl.Column("c").Values[0].IsMissing())
	for _, c := range tbl.Columns {
		assert.Len(t, c.Values, tbl.Rows())
	}
}

func TestLoad_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	content := "Staff,Bonus,Period\nAnn,10,2024-01-05\nBen,,2024-02-01\n,,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tbl, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Rows(), "blank rows are dropped")
	assert.True(t, tbl.Column("Bonus").Values[1].IsMissing())

	ts, ok := tbl.Column("Period").Values[0].Timestamp()
	require.True(t, ok)
	assert.Equal(t, time.January, ts.Month())
}

func TestLoadReader_DuplicateAndBlankHeaders(t *testing.T) {
	tbl, err := LoadReader("x.csv", strings.NewReader("amount,amount,\n1,2,3\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"amount", "amount.1", "Unnamed: 2"}, tbl.Names())

	tbl, err = LoadReader("x.csv", strings.NewReader("a.1,a,a,a\n1,2,3,4\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.1", "a", "a.2", "a.3"}, tbl.Names())
	for i, name := range tbl.Names() {
		v, ok := tbl.Column(name).Values[0].Float()
		require.True(t, ok, name)
		assert.Equal(t, float64(i+1), v, name)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		wantMsg string
	}{
		{
			name:    "missing file",
			setup:   func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.xlsx") },
			wantMsg: "read file",
		},
		{
			name: "unsupported extension",
			setup: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "data.xls")
				require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
				return p
			},
			wantMsg: "unsupported extension",
		},
		{
			name: "corrupt workbook",
			setup: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "bad.xlsx")
				require.NoError(t, os.WriteFile(p, []byte("not a zip"), 0o644))
				return p
			},
			wantMsg: "xlsx: open",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.setup(t))
			require.Error(t, err)
			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("report.XLSX"))
	assert.True(t, Supported("a.csv"))
	assert.False(t, Supported("a.xls"))
	assert.False(t, Supported("a"))
}
