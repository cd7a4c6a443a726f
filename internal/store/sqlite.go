package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/microfinance-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS excel_files (
	id                TEXT PRIMARY KEY,
	filename          TEXT NOT NULL,
	file_path         TEXT NOT NULL,
	uploaded_by       TEXT NOT NULL DEFAULT '',
	analysis_complete INTEGER NOT NULL DEFAULT 0,
	upload_date       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS analysis_results (
	id            TEXT PRIMARY KEY,
	excel_file_id TEXT NOT NULL REFERENCES excel_files(id),
	result_type   TEXT NOT NULL,
	result_data   TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (excel_file_id, result_type)
);

CREATE TABLE IF NOT EXISTS loans (
	id            TEXT PRIMARY KEY,
	client_name   TEXT NOT NULL,
	phone_number  TEXT NOT NULL DEFAULT '',
	amount        REAL NOT NULL,
	interest_rate REAL NOT NULL,
	term_months   INTEGER NOT NULL,
	purpose       TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending',
	risk_analysis TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	approved_at   DATETIME
);

CREATE TABLE IF NOT EXISTS messages (
	id           TEXT PRIMARY KEY,
	recipient    TEXT NOT NULL,
	content      TEXT NOT NULL,
	message_type TEXT NOT NULL DEFAULT 'notification',
	status       TEXT NOT NULL DEFAULT 'pending',
	provider_sid TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	send_time    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_analysis_results_file ON analysis_results(excel_file_id);
CREATE INDEX IF NOT EXISTS idx_loans_status ON loans(status);
CREATE INDEX IF NOT EXISTS idx_messages_status ON messages(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- files ---

func (s *SQLiteStore) CreateFile(ctx context.Context, f *model.UploadedFile) error {
	f.ID = uuid.New().String()
	f.UploadedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO excel_files (id, filename, file_path, uploaded_by, analysis_complete, upload_date) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.Filename, f.Path, f.UploadedBy, f.AnalysisComplete, f.UploadedAt,
	)
	return eris.Wrap(err, "sqlite: insert file")
}

const sqliteFileColumns = `id, filename, file_path, uploaded_by, analysis_complete, upload_date`

func (s *SQLiteStore) GetFile(ctx context.Context, id string) (*model.UploadedFile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteFileColumns+` FROM excel_files WHERE id = ?`, id)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("file", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get file %s", id)
	}
	return f, nil
}

func (s *SQLiteStore) ListFiles(ctx context.Context, filter ListFilter) ([]model.UploadedFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteFileColumns+` FROM excel_files ORDER BY upload_date DESC LIMIT ? OFFSET ?`,
		filter.limit(), max(filter.Offset, 0),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list files")
	}
	defer rows.Close()

	files := []model.UploadedFile{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan file")
		}
		files = append(files, *f)
	}
	return files, eris.Wrap(rows.Err(), "sqlite: list files iterate")
}

func (s *SQLiteStore) MarkAnalyzed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE excel_files SET analysis_complete = 1 WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark analyzed %s", id)
	}
	return checkRowsAffected(res, "file", id)
}

// --- results ---

func (s *SQLiteStore) SaveResult(ctx context.Context, fileID, resultType string, data json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_results (id, excel_file_id, result_type, result_data, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (excel_file_id, result_type) DO UPDATE SET result_data = excluded.result_data, created_at = excluded.created_at`,
		uuid.New().String(), fileID, resultType, string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save %s result for file %s", resultType, fileID)
}

func (s *SQLiteStore) ListResults(ctx context.Context, fileID string) ([]model.AnalysisResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, excel_file_id, result_type, result_data, created_at FROM analysis_results
		 WHERE excel_file_id = ? ORDER BY result_type`,
		fileID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close()

	results := []model.AnalysisResult{}
	for rows.Next() {
		var r model.AnalysisResult
		var data string
		if err := rows.Scan(&r.ID, &r.FileID, &r.Type, &data, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		r.Data = json.RawMessage(data)
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list results iterate")
}

// --- loans ---

func (s *SQLiteStore) CreateLoan(ctx context.Context, l *model.Loan) error {
	l.ID = uuid.New().String()
	l.CreatedAt = time.Now().UTC()
	if l.Status == "" {
		l.Status = model.LoanPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO loans (id, client_name, phone_number, amount, interest_rate, term_months, purpose, status, risk_analysis, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.ClientName, l.PhoneNumber, l.Amount, l.InterestRate, l.TermMonths, l.Purpose,
		string(l.Status), nullableJSON(l.RiskAnalysis), l.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert loan")
}

const sqliteLoanColumns = `id, client_name, phone_number, amount, interest_rate, term_months, purpose, status, risk_analysis, created_at, approved_at`

func (s *SQLiteStore) GetLoan(ctx context.Context, id string) (*model.Loan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteLoanColumns+` FROM loans WHERE id = ?`, id)
	l, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("loan", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get loan %s", id)
	}
	return l, nil
}

func (s *SQLiteStore) ListLoans(ctx context.Context, filter ListFilter) ([]model.Loan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteLoanColumns+` FROM loans ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		filter.limit(), max(filter.Offset, 0),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list loans")
	}
	defer rows.Close()

	loans := []model.Loan{}
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan loan")
		}
		loans = append(loans, *l)
	}
	return loans, eris.Wrap(rows.Err(), "sqlite: list loans iterate")
}

func (s *SQLiteStore) UpdateLoanStatus(ctx context.Context, id string, status model.LoanStatus, approvedAt *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE loans SET status = ?, approved_at = COALESCE(?, approved_at) WHERE id = ?`,
		string(status), nullableTime(approvedAt), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update loan status %s", id)
	}
	return checkRowsAffected(res, "loan", id)
}

// --- messages ---

func (s *SQLiteStore) RecordMessage(ctx context.Context, m *model.Message) error {
	m.ID = uuid.New().String()
	if m.SendTime.IsZero() {
		m.SendTime = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, recipient, content, message_type, status, provider_sid, error, send_time) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.To, m.Content, string(m.Type), string(m.Status), m.ProviderSID, m.Error, m.SendTime,
	)
	return eris.Wrap(err, "sqlite: insert message")
}

func (s *SQLiteStore) UpdateMessageStatus(ctx context.Context, id string, status model.MessageStatus, providerSID, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET status = ?, provider_sid = ?, error = ? WHERE id = ?`,
		string(status), providerSID, errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update message %s", id)
	}
	return checkRowsAffected(res, "message", id)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanFile(row scannable) (*model.UploadedFile, error) {
	var f model.UploadedFile
	if err := row.Scan(&f.ID, &f.Filename, &f.Path, &f.UploadedBy, &f.AnalysisComplete, &f.UploadedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func scanLoan(row scannable) (*model.Loan, error) {
	var l model.Loan
	var risk sql.NullString
	var approved sql.NullTime
	err := row.Scan(&l.ID, &l.ClientName, &l.PhoneNumber, &l.Amount, &l.InterestRate, &l.TermMonths,
		&l.Purpose, &l.Status, &risk, &l.CreatedAt, &approved)
	if err != nil {
		return nil, err
	}
	if risk.Valid {
		l.RiskAnalysis = json.RawMessage(risk.String)
	}
	if approved.Valid {
		t := approved.Time
		l.ApprovedAt = &t
	}
	return &l, nil
}

func nullableJSON(b json.RawMessage) any {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return string(b)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
