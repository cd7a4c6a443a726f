package analysis

import (
	"time"

	"github.com/sells-group/microfinance-cli/internal/sheet"
)

// cell converts shorthand test values: nil → missing, float64/int → number,
// string → text, time.Time → date.
func cell(v any) sheet.Value {
	switch x := v.(type) {
	case nil:
		return sheet.Missing()
	case float64:
		return sheet.Number(x)
	case int:
		return sheet.Number(float64(x))
	case string:
		return sheet.Text(x)
	case time.Time:
		return sheet.Date(x)
	default:
		panic("unsupported test cell")
	}
}

func newTable(header []string, rows ...[]any) *sheet.Table {
	vals := make([][]sheet.Value, len(rows))
	for i, row := range rows {
		vals[i] = make([]sheet.Value, len(row))
		for j, v := range row {
			vals[i][j] = cell(v)
		}
	}
	return sheet.NewTable(header, vals)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
