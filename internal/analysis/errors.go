package analysis

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrNotApplicable is returned when the table lacks the columns an analysis
// needs. It is an expected outcome, not a processing fault.
var ErrNotApplicable = eris.New("analysis: not applicable")

// AnalysisError reports an unexpected failure inside one analysis.
type AnalysisError struct {
	Type string
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis %s: %v", e.Type, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
