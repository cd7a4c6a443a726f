package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/microfinance-cli/internal/model"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// ListFilter pages through list results, newest first.
type ListFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

func (f ListFilter) limit() int {
	if f.Limit <= 0 || f.Limit > 500 {
		return 100
	}
	return f.Limit
}

// Store defines the persistence interface for uploads, analyses, loans and
// messages.
type Store interface {
	// Uploaded files
	CreateFile(ctx context.Context, f *model.UploadedFile) error
	GetFile(ctx context.Context, id string) (*model.UploadedFile, error)
	ListFiles(ctx context.Context, filter ListFilter) ([]model.UploadedFile, error)
	MarkAnalyzed(ctx context.Context, id string) error

	// Analysis results, unique per (file, type)
	SaveResult(ctx context.Context, fileID, resultType string, data json.RawMessage) error
	ListResults(ctx context.Context, fileID string) ([]model.AnalysisResult, error)

	// Loans
	CreateLoan(ctx context.Context, l *model.Loan) error
	GetLoan(ctx context.Context, id string) (*model.Loan, error)
	ListLoans(ctx context.Context, filter ListFilter) ([]model.Loan, error)
	UpdateLoanStatus(ctx context.Context, id string, status model.LoanStatus, approvedAt *time.Time) error

	// Messages
	RecordMessage(ctx context.Context, m *model.Message) error
	UpdateMessageStatus(ctx context.Context, id string, status model.MessageStatus, providerSID, errMsg string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func notFound(entity, id string) error {
	return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
}
