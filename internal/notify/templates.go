// Package notify builds client and staff SMS messages and delivers them.
package notify

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sells-group/microfinance-cli/internal/analysis"
)

func money(amount float64) string {
	return "$" + decimal.NewFromFloat(amount).StringFixed(2)
}

// LoanApproval tells a client their application was approved.
func LoanApproval(clientName string, amount float64, loanID string) string {
	return fmt.Sprintf("Hello %s, your loan application #%s for %s has been approved! "+
		"Log in to your account for more details.", clientName, loanID, money(amount))
}

// PaymentReminder reminds a client of an upcoming installment.
func PaymentReminder(clientName string, amount float64, dueDate string) string {
	return fmt.Sprintf("Hello %s, this is a reminder that a payment of %s is due on %s. "+
		"Please ensure timely payment to avoid late fees.", clientName, money(amount), dueDate)
}

// PaymentConfirmation acknowledges a received payment.
func PaymentConfirmation(clientName string, amount float64, loanID string) string {
	return fmt.Sprintf("Hello %s, we have received your payment of %s for loan #%s. Thank you!",
		clientName, money(amount), loanID)
}

// AnalysisComplete tells staff an uploaded spreadsheet is ready. The table
// shape is included when a summary was produced.
func AnalysisComplete(adminName, fileName string, summary *analysis.SummaryReport) string {
	if summary == nil {
		return fmt.Sprintf("Hello %s, your Excel file '%s' has been successfully uploaded and analyzed. "+
			"You can view the results in your dashboard.", adminName, fileName)
	}
	return fmt.Sprintf("Hello %s, your Excel file '%s' has been successfully analyzed. "+
		"The file contains %d rows and %d columns. Log in to view the full analysis.",
		adminName, fileName, summary.Rows, summary.Columns)
}
