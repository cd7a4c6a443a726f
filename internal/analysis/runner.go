package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/microfinance-cli/internal/sheet"
)

// Result type names used when persisting analyses.
const (
	TypeSummary    = "summary"
	TypeFinancial  = "financial"
	TypeCommission = "commission"
)

// Status is the outcome of a single analysis within a run.
type Status string

const (
	StatusOK            Status = "ok"
	StatusNotApplicable Status = "not_applicable"
	StatusFailed        Status = "failed"
)

// Outcome records how one analysis finished.
type Outcome struct {
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"-"`
}

// Report bundles every analysis computed for one table. A nil field means
// that analysis did not produce a result; Outcomes says why.
type Report struct {
	Profile    *Profile           `json:"-"`
	Summary    *SummaryReport     `json:"summary,omitempty"`
	Financial  *FinancialAnalysis `json:"financial,omitempty"`
	Commission *CommissionReport  `json:"commission,omitempty"`
	Outcomes   map[string]Outcome `json:"outcomes"`

	encoded map[string]json.RawMessage
}

// Results returns each successful analysis encoded as JSON, keyed by type.
// An analysis whose result could not be encoded is reported as failed in
// Outcomes and is absent here.
func (r *Report) Results() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(r.encoded))
	for name, b := range r.encoded {
		out[name] = b
	}
	return out
}

// Observer is notified after each analysis finishes.
type Observer func(analysisType string, o Outcome)

// Run profiles t once and computes the summary, financial and commission
// analyses concurrently. Each result is encoded inside its own task, so a
// failure in one analysis, including one that cannot be encoded, is
// recorded in Outcomes and never prevents the others from completing.
func Run(ctx context.Context, t *sheet.Table, observe Observer) *Report {
	rep := &Report{
		Profile:  NewProfile(t),
		Outcomes: make(map[string]Outcome, 3),
		encoded:  make(map[string]json.RawMessage, 3),
	}

	tasks := []struct {
		name string
		fn   func() (any, error)
	}{
		{TypeSummary, func() (any, error) {
			return Summarize(t, rep.Profile), nil
		}},
		{TypeFinancial, func() (any, error) {
			return AnalyzeFinancials(t, rep.Profile), nil
		}},
		{TypeCommission, func() (any, error) {
			return ExtractCommissions(t, rep.Profile)
		}},
	}

	outcomes := make([]Outcome, len(tasks))
	values := make([]any, len(tasks))
	encoded := make([]json.RawMessage, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	for i, task := range tasks {
		g.Go(func() error {
			if gctx.Err() != nil {
				outcomes[i] = Outcome{Status: StatusFailed, Error: gctx.Err().Error()}
				return nil
			}
			start := time.Now()
			err := guard(task.name, func() error {
				v, err := task.fn()
				if err != nil {
					return err
				}
				b, err := json.Marshal(v)
				if err != nil {
					return eris.Wrap(err, "encode result")
				}
				values[i], encoded[i] = v, b
				return nil
			})
			outcomes[i] = outcomeFor(err)
			outcomes[i].Duration = time.Since(start)
			return nil // don't cancel sibling analyses
		})
	}
	_ = g.Wait()

	for i, task := range tasks {
		o := outcomes[i]
		rep.Outcomes[task.name] = o
		if o.Status == StatusOK {
			rep.encoded[task.name] = encoded[i]
			switch v := values[i].(type) {
			case *SummaryReport:
				rep.Summary = v
			case *FinancialAnalysis:
				rep.Financial = v
			case *CommissionReport:
				rep.Commission = v
			}
		}
		if o.Status == StatusFailed {
			zap.L().Error("analysis failed",
				zap.String("type", task.name),
				zap.String("error", o.Error),
			)
		}
		if observe != nil {
			observe(task.name, o)
		}
	}
	return rep
}

// guard runs fn and converts a panic into an AnalysisError.
func guard(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &AnalysisError{Type: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := fn(); err != nil {
		if errors.Is(err, ErrNotApplicable) {
			return err
		}
		return &AnalysisError{Type: name, Err: err}
	}
	return nil
}

func outcomeFor(err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Status: StatusOK}
	case errors.Is(err, ErrNotApplicable):
		return Outcome{Status: StatusNotApplicable, Error: err.Error()}
	default:
		return Outcome{Status: StatusFailed, Error: err.Error()}
	}
}
