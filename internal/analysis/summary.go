package analysis

import (
	"github.com/sells-group/microfinance-cli/internal/sheet"
)

// sampleRows is the number of leading rows copied into a summary.
const sampleRows = 5

// ColumnStats holds descriptive statistics for one numeric column.
type ColumnStats struct {
	Mean    float64 `json:"mean"`
	Median  float64 `json:"median"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Std     float64 `json:"std"`
	Missing int     `json:"missing"`
}

// SummaryReport describes a table's shape, types and numeric statistics.
type SummaryReport struct {
	Rows          int                    `json:"rows"`
	Columns       int                    `json:"columns"`
	ColumnNames   []string               `json:"column_names"`
	Statistics    map[string]ColumnStats `json:"statistics"`
	DataTypes     map[string]ColumnType  `json:"data_types"`
	MissingValues map[string]int         `json:"missing_values"`
	SampleData    []Record               `json:"sample_data"`
}

// Summarize computes the summary report for t. Statistics are only produced
// for integer and float columns; a column without values reports zeros.
func Summarize(t *sheet.Table, p *Profile) *SummaryReport {
	rep := &SummaryReport{
		Rows:          t.Rows(),
		Columns:       len(t.Columns),
		ColumnNames:   t.Names(),
		Statistics:    make(map[string]ColumnStats),
		DataTypes:     p.Types(),
		MissingValues: make(map[string]int, len(t.Columns)),
		SampleData:    []Record{},
	}

	for _, col := range t.Columns {
		rep.MissingValues[col.Name] = col.Missing()
	}

	for _, name := range p.Numeric() {
		col := t.Column(name)
		vals := col.Floats()
		lo, hi := minMax(vals)
		rep.Statistics[name] = ColumnStats{
			Mean:    mean(vals),
			Median:  median(vals),
			Min:     lo,
			Max:     hi,
			Std:     sampleStd(vals),
			Missing: col.Missing(),
		}
	}

	n := min(sampleRows, t.Rows())
	for r := 0; r < n; r++ {
		rec := Record{
			Keys:   rep.ColumnNames,
			Values: make([]any, len(t.Columns)),
		}
		for i, col := range t.Columns {
			rec.Values[i] = col.Values[r].Interface()
		}
		rep.SampleData = append(rep.SampleData, rec)
	}

	return rep
}
