package analysis

import (
	"fmt"
	"sort"

	"github.com/sells-group/microfinance-cli/internal/sheet"
)

// histogramBins is the fixed number of equal-width bins per amount column.
const histogramBins = 5

// Distribution is a histogram of one amount column.
type Distribution struct {
	Bins   []string `json:"bins"`
	Counts []int    `json:"counts"`
}

// TimeSeries holds monthly sums, oldest first.
type TimeSeries struct {
	Dates  []string  `json:"dates"`
	Values []float64 `json:"values"`
}

// FinancialAnalysis aggregates every amount-role column.
type FinancialAnalysis struct {
	AmountColumns []string                `json:"amount_columns"`
	Totals        map[string]float64      `json:"totals"`
	Averages      map[string]float64      `json:"averages"`
	Distributions map[string]Distribution `json:"distributions"`
	TimeSeries    map[string]TimeSeries   `json:"time_series,omitempty"`
}

// AnalyzeFinancials totals, averages and bins each amount column, and builds
// a monthly series for every date/amount column pair.
func AnalyzeFinancials(t *sheet.Table, p *Profile) *FinancialAnalysis {
	amounts := p.WithRole(RoleAmount)
	fa := &FinancialAnalysis{
		AmountColumns: append([]string{}, amounts...),
		Totals:        make(map[string]float64, len(amounts)),
		Averages:      make(map[string]float64, len(amounts)),
		Distributions: make(map[string]Distribution, len(amounts)),
	}

	for _, name := range amounts {
		vals := t.Column(name).Floats()
		fa.Totals[name] = sum(vals)
		fa.Averages[name] = mean(vals)
		fa.Distributions[name] = histogram(vals, histogramBins)
	}

	dates := p.WithRole(RoleDate)
	if len(dates) == 0 || len(amounts) == 0 {
		return fa
	}

	fa.TimeSeries = make(map[string]TimeSeries, len(dates)*len(amounts))
	for _, d := range dates {
		for _, a := range amounts {
			key := fmt.Sprintf("%s_%s_monthly", d, a)
			fa.TimeSeries[key] = monthly(t.Column(d), t.Column(a))
		}
	}
	return fa
}

// histogram splits [min, max] of vals into equal-width bins. Every bin is
// half-open except the last, which also holds the maximum. When all values
// are equal the range is widened by 0.5 on each side; with no values the
// range is [0, 1].
func histogram(vals []float64, bins int) Distribution {
	lo, hi := 0.0, 1.0
	if len(vals) > 0 {
		lo, hi = minMax(vals)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	width := (hi - lo) / float64(bins)
	edges := make([]float64, bins+1)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[bins] = hi

	counts := make([]int, bins)
	for _, v := range vals {
		// width collapses to zero when widening by 0.5 is lost to precision.
		if width <= 0 {
			counts[0]++
			continue
		}
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		// Floating point division can land one bin off near an edge.
		if idx > 0 && v < edges[idx] {
			idx--
		} else if idx < bins-1 && v >= edges[idx+1] {
			idx++
		}
		counts[idx]++
	}

	labels := make([]string, bins)
	for i := range labels {
		labels[i] = fmt.Sprintf("%.2f-%.2f", edges[i], edges[i+1])
	}
	return Distribution{Bins: labels, Counts: counts}
}

// monthly sums amounts by the calendar month of each row's timestamp. Rows
// whose date does not parse are skipped; a month appears once it has a row,
// even if every amount in it is missing.
func monthly(dateCol, amountCol *sheet.Column) TimeSeries {
	totals := make(map[int]float64)
	var keys []int
	for r, dv := range dateCol.Values {
		ts, ok := dv.Timestamp()
		if !ok {
			continue
		}
		key := ts.Year()*12 + int(ts.Month()) - 1
		if _, seen := totals[key]; !seen {
			totals[key] = 0
			keys = append(keys, key)
		}
		if f, ok := amountCol.Values[r].Float(); ok {
			totals[key] += f
		}
	}
	sort.Ints(keys)

	ts := TimeSeries{
		Dates:  make([]string, len(keys)),
		Values: make([]float64, len(keys)),
	}
	for i, k := range keys {
		ts.Dates[i] = fmt.Sprintf("%04d-%02d", k/12, k%12+1)
		ts.Values[i] = totals[k]
	}
	return ts
}
