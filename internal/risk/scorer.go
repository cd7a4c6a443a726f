// Package risk scores loan applications and computes their repayment terms.
package risk

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Category buckets a risk score.
type Category string

const (
	CategoryLow    Category = "Low"
	CategoryMedium Category = "Medium"
	CategoryHigh   Category = "High"
)

// Score thresholds and factor weights.
const (
	lowThreshold      = 30.0
	highThreshold     = 70.0
	approveBelowScore = 50.0

	amountCeiling = 10000.0
	termCeiling   = 36.0
	rateCeiling   = 20.0

	amountWeight   = 0.5
	termWeight     = 0.3
	interestWeight = 0.2
)

// Required application fields.
const (
	FieldAmount       = "amount"
	FieldTermMonths   = "term_months"
	FieldInterestRate = "interest_rate"
)

var requiredFields = []string{FieldAmount, FieldTermMonths, FieldInterestRate}

// Assessment is the outcome of scoring one application.
type Assessment struct {
	Status              string   `json:"status"`
	RiskScore           float64  `json:"risk_score"`
	RiskCategory        Category `json:"risk_category"`
	ApprovalRecommended bool     `json:"approval_recommended"`
	MonthlyPayment      float64  `json:"monthly_payment"`
	TotalPayment        float64  `json:"total_payment"`
	TotalInterest       float64  `json:"total_interest"`
}

// ValidationError rejects an application whose fields are missing or
// malformed.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "risk: " + e.Reason
	}
	return fmt.Sprintf("risk: %s: [%s]", e.Reason, strings.Join(e.Fields, ", "))
}

// Score applies the weighted factor model to one loan. termMonths must be
// positive and amount must not be negative.
func Score(amount float64, termMonths int, interestRate float64) (*Assessment, error) {
	switch {
	case termMonths <= 0:
		return nil, &ValidationError{Fields: []string{FieldTermMonths}, Reason: "term must be at least one month"}
	case amount < 0 || !finite(amount):
		return nil, &ValidationError{Fields: []string{FieldAmount}, Reason: "amount must be a non-negative number"}
	case !finite(interestRate):
		return nil, &ValidationError{Fields: []string{FieldInterestRate}, Reason: "interest rate must be a number"}
	}

	term := float64(termMonths)
	amountFactor := math.Min(1, amount/amountCeiling)
	termFactor := math.Min(1, term/termCeiling)
	interestFactor := math.Max(0, 1-interestRate/rateCeiling)
	score := 100 * (amountWeight*amountFactor + termWeight*termFactor + interestWeight*interestFactor)

	a := &Assessment{Status: "success", RiskScore: score}
	switch {
	case score < lowThreshold:
		a.RiskCategory = CategoryLow
		a.ApprovalRecommended = true
	case score < highThreshold:
		a.RiskCategory = CategoryMedium
		a.ApprovalRecommended = score < approveBelowScore
	default:
		a.RiskCategory = CategoryHigh
	}

	a.MonthlyPayment = MonthlyPayment(amount, termMonths, interestRate)
	if !finite(a.MonthlyPayment) {
		return nil, &ValidationError{
			Fields: []string{FieldAmount, FieldTermMonths, FieldInterestRate},
			Reason: "terms produce a non-finite monthly payment",
		}
	}
	total := decimal.NewFromFloat(a.MonthlyPayment).Mul(decimal.NewFromInt(int64(termMonths)))
	a.TotalPayment = total.InexactFloat64()
	a.TotalInterest = total.Sub(decimal.NewFromFloat(amount)).InexactFloat64()
	if !finite(a.TotalPayment) || !finite(a.TotalInterest) {
		return nil, &ValidationError{
			Fields: []string{FieldAmount, FieldTermMonths},
			Reason: "terms produce a non-finite total payment",
		}
	}
	return a, nil
}

func finite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

// MonthlyPayment is the fixed amortised installment. A zero rate, or one too
// small to compound at float precision, spreads the principal evenly over the
// term. When compounding overflows, the installment is its limit amount*r.
func MonthlyPayment(amount float64, termMonths int, annualRate float64) float64 {
	r := annualRate / 100 / 12
	n := float64(termMonths)
	if r == 0 {
		return amount / n
	}
	growth := math.Pow(1+r, n)
	switch {
	case growth == 1:
		return amount / n
	case math.IsInf(growth, 1):
		return amount * r
	}
	return amount * r * growth / (growth - 1)
}

// Application holds the scoring inputs read from a request.
type Application struct {
	Amount       float64
	TermMonths   int
	InterestRate float64
}

// ParseApplication reads amount, term_months and interest_rate from a
// decoded request. Missing or non-numeric fields yield a ValidationError.
// term_months is truncated toward zero.
func ParseApplication(app map[string]any) (Application, error) {
	var missing []string
	for _, f := range requiredFields {
		if v, ok := app[f]; !ok || v == nil {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return Application{}, &ValidationError{Fields: missing, Reason: "missing required fields"}
	}

	vals := make(map[string]float64, len(requiredFields))
	var invalid []string
	for _, f := range requiredFields {
		v, ok := toFloat(app[f])
		if !ok {
			invalid = append(invalid, f)
			continue
		}
		vals[f] = v
	}
	if len(invalid) > 0 {
		return Application{}, &ValidationError{Fields: invalid, Reason: "fields must be numeric"}
	}

	return Application{
		Amount:       vals[FieldAmount],
		TermMonths:   int(vals[FieldTermMonths]),
		InterestRate: vals[FieldInterestRate],
	}, nil
}

// ScoreApplication validates a decoded application and scores it. Fields
// other than amount, term_months and interest_rate are ignored.
func ScoreApplication(app map[string]any) (*Assessment, error) {
	a, err := ParseApplication(app)
	if err != nil {
		return nil, err
	}
	return Score(a.Amount, a.TermMonths, a.InterestRate)
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
