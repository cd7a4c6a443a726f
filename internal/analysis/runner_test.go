package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_AllAnalyses(t *testing.T) {
	tbl := newTable(
		[]string{"Agent", "Loan Amount", "Commission", "Disbursement Date"},
		[]any{"Ann", 1000, 50, day(2024, 1, 10)},
		[]any{"Ben", 2000, 80, day(2024, 2, 3)},
	)

	var mu sync.Mutex
	seen := map[string]Status{}
	rep := Run(context.Background(), tbl, func(name string, o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		seen[name] = o.Status
	})

	require.NotNil(t, rep.Summary)
	require.NotNil(t, rep.Financial)
	require.NotNil(t, rep.Commission)
	assert.Equal(t, map[string]Status{
		TypeSummary:    StatusOK,
		TypeFinancial:  StatusOK,
		TypeCommission: StatusOK,
	}, seen)

	results := rep.Results()
	assert.Len(t, results, 3)

	var fa FinancialAnalysis
	require.NoError(t, json.Unmarshal(results[TypeFinancial], &fa))
	assert.Equal(t, []string{"Loan Amount"}, fa.AmountColumns)
	assert.Contains(t, fa.TimeSeries, "Disbursement Date_Loan Amount_monthly")
}

func TestRun_CommissionNotApplicable(t *testing.T) {
	tbl := newTable([]string{"amount"}, []any{1}, []any{2})

	rep := Run(context.Background(), tbl, nil)

	assert.Equal(t, StatusOK, rep.Outcomes[TypeSummary].Status)
	assert.Equal(t, StatusOK, rep.Outcomes[TypeFinancial].Status)
	assert.Equal(t, StatusNotApplicable, rep.Outcomes[TypeCommission].Status)
	assert.Contains(t, rep.Outcomes[TypeCommission].Error, "agent column")
	assert.Nil(t, rep.Commission)

	assert.NotContains(t, rep.Results(), TypeCommission)
}

func TestRun_UnencodableResultIsolated(t *testing.T) {
	tbl := newTable(
		[]string{"loan_amount", "agent", "commission"},
		[]any{1e308, "Ann", 10},
		[]any{1e308, "Ben", 20},
	)

	rep := Run(context.Background(), tbl, nil)

	assert.Equal(t, StatusOK, rep.Outcomes[TypeSummary].Status)
	assert.Equal(t, StatusOK, rep.Outcomes[TypeCommission].Status)
	assert.Equal(t, StatusFailed, rep.Outcomes[TypeFinancial].Status)
	assert.Contains(t, rep.Outcomes[TypeFinancial].Error, "analysis financial: encode result")
	assert.Nil(t, rep.Financial)

	results := rep.Results()
	assert.Len(t, results, 2)
	assert.Contains(t, results, TypeSummary)
	assert.Contains(t, results, TypeCommission)

	var sr SummaryReport
	require.NoError(t, json.Unmarshal(results[TypeSummary], &sr))
	assert.Equal(t, 1e308, sr.Statistics["loan_amount"].Mean)
	assert.Equal(t, 1e308, sr.Statistics["loan_amount"].Median)

	_, err := json.Marshal(rep)
	assert.NoError(t, err)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := Run(ctx, newTable([]string{"x"}, []any{1}), nil)
	for _, name := range []string{TypeSummary, TypeFinancial, TypeCommission} {
		assert.Equal(t, StatusFailed, rep.Outcomes[name].Status, name)
	}
}

func TestGuard(t *testing.T) {
	err := guard("summary", func() error { panic("boom") })
	var ae *AnalysisError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "summary", ae.Type)
	assert.Contains(t, err.Error(), "panic: boom")

	err = guard("financial", func() error { return errors.New("bad input") })
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "analysis financial: bad input", err.Error())
	assert.Equal(t, StatusFailed, outcomeFor(err).Status)

	assert.Nil(t, guard("commission", func() error { return nil }))
}
