package model

import (
	"encoding/json"
	"time"
)

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanPending   LoanStatus = "pending"
	LoanApproved  LoanStatus = "approved"
	LoanRejected  LoanStatus = "rejected"
	LoanActive    LoanStatus = "active"
	LoanCompleted LoanStatus = "completed"
)

// Valid reports whether s is a known status.
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanPending, LoanApproved, LoanRejected, LoanActive, LoanCompleted:
		return true
	}
	return false
}

// Loan is a client's loan application.
type Loan struct {
	ID           string          `json:"id"`
	ClientName   string          `json:"client_name"`
	PhoneNumber  string          `json:"phone_number,omitempty"`
	Amount       float64         `json:"amount"`
	InterestRate float64         `json:"interest_rate"`
	TermMonths   int             `json:"term_months"`
	Purpose      string          `json:"purpose,omitempty"`
	Status       LoanStatus      `json:"status"`
	RiskAnalysis json.RawMessage `json:"risk_analysis"`
	CreatedAt    time.Time       `json:"created_at"`
	ApprovedAt   *time.Time      `json:"approved_at,omitempty"`
}
