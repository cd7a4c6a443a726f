package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/microfinance-cli/internal/model"
	"github.com/sells-group/microfinance-cli/internal/resilience"
)

// pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it in
// tests.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	p, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	// The database may still be starting when the service comes up.
	ping := resilience.Policy{
		Attempts:  5,
		BaseDelay: 500 * time.Millisecond,
		Retryable: func(error) bool { return true },
		OnRetry:   resilience.LogRetry("postgres", "ping"),
	}
	if err := resilience.Retry(ctx, ping, p.Ping); err != nil {
		p.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: p, closeFn: p.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS excel_files (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	filename          TEXT NOT NULL,
	file_path         TEXT NOT NULL,
	uploaded_by       TEXT NOT NULL DEFAULT '',
	analysis_complete BOOLEAN NOT NULL DEFAULT false,
	upload_date       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS analysis_results (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	excel_file_id TEXT NOT NULL REFERENCES excel_files(id),
	result_type   TEXT NOT NULL,
	result_data   JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (excel_file_id, result_type)
);

CREATE TABLE IF NOT EXISTS loans (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	client_name   TEXT NOT NULL,
	phone_number  TEXT NOT NULL DEFAULT '',
	amount        DOUBLE PRECISION NOT NULL,
	interest_rate DOUBLE PRECISION NOT NULL,
	term_months   INTEGER NOT NULL,
	purpose       TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending',
	risk_analysis JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	approved_at   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS messages (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	recipient    TEXT NOT NULL,
	content      TEXT NOT NULL,
	message_type TEXT NOT NULL DEFAULT 'notification',
	status       TEXT NOT NULL DEFAULT 'pending',
	provider_sid TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	send_time    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analysis_results_file ON analysis_results(excel_file_id);
CREATE INDEX IF NOT EXISTS idx_loans_status ON loans(status);
CREATE INDEX IF NOT EXISTS idx_messages_status ON messages(status);
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- files ---

func (s *PostgresStore) CreateFile(ctx context.Context, f *model.UploadedFile) error {
	f.ID = uuid.New().String()
	f.UploadedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO excel_files (id, filename, file_path, uploaded_by, analysis_complete, upload_date) VALUES ($1, $2, $3, $4, $5, $6)`,
		f.ID, f.Filename, f.Path, f.UploadedBy, f.AnalysisComplete, f.UploadedAt,
	)
	return eris.Wrap(err, "postgres: insert file")
}

const pgFileColumns = `id, filename, file_path, uploaded_by, analysis_complete, upload_date`

func (s *PostgresStore) GetFile(ctx context.Context, id string) (*model.UploadedFile, error) {
	f, err := scanFile(s.pool.QueryRow(ctx, `SELECT `+pgFileColumns+` FROM excel_files WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("file", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get file %s", id)
	}
	return f, nil
}

func (s *PostgresStore) ListFiles(ctx context.Context, filter ListFilter) ([]model.UploadedFile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgFileColumns+` FROM excel_files ORDER BY upload_date DESC LIMIT $1 OFFSET $2`,
		filter.limit(), max(filter.Offset, 0),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list files")
	}
	defer rows.Close()

	files := []model.UploadedFile{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan file")
		}
		files = append(files, *f)
	}
	return files, eris.Wrap(rows.Err(), "postgres: list files iterate")
}

func (s *PostgresStore) MarkAnalyzed(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE excel_files SET analysis_complete = true WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark analyzed %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("file", id)
	}
	return nil
}

// --- results ---

func (s *PostgresStore) SaveResult(ctx context.Context, fileID, resultType string, data json.RawMessage) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_results (id, excel_file_id, result_type, result_data, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (excel_file_id, result_type) DO UPDATE SET result_data = EXCLUDED.result_data, created_at = EXCLUDED.created_at`,
		uuid.New().String(), fileID, resultType, []byte(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save %s result for file %s", resultType, fileID)
}

func (s *PostgresStore) ListResults(ctx context.Context, fileID string) ([]model.AnalysisResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, excel_file_id, result_type, result_data, created_at FROM analysis_results
		 WHERE excel_file_id = $1 ORDER BY result_type`,
		fileID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	results := []model.AnalysisResult{}
	for rows.Next() {
		var r model.AnalysisResult
		var data []byte
		if err := rows.Scan(&r.ID, &r.FileID, &r.Type, &data, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		r.Data = json.RawMessage(data)
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list results iterate")
}

// --- loans ---

func (s *PostgresStore) CreateLoan(ctx context.Context, l *model.Loan) error {
	l.ID = uuid.New().String()
	l.CreatedAt = time.Now().UTC()
	if l.Status == "" {
		l.Status = model.LoanPending
	}

	var risk []byte
	if nullableJSON(l.RiskAnalysis) != nil {
		risk = []byte(l.RiskAnalysis)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO loans (id, client_name, phone_number, amount, interest_rate, term_months, purpose, status, risk_analysis, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		l.ID, l.ClientName, l.PhoneNumber, l.Amount, l.InterestRate, l.TermMonths, l.Purpose,
		string(l.Status), risk, l.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert loan")
}

const pgLoanColumns = `id, client_name, phone_number, amount, interest_rate, term_months, purpose, status, risk_analysis, created_at, approved_at`

func (s *PostgresStore) GetLoan(ctx context.Context, id string) (*model.Loan, error) {
	l, err := scanPgLoan(s.pool.QueryRow(ctx, `SELECT `+pgLoanColumns+` FROM loans WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("loan", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get loan %s", id)
	}
	return l, nil
}

func (s *PostgresStore) ListLoans(ctx context.Context, filter ListFilter) ([]model.Loan, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgLoanColumns+` FROM loans ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		filter.limit(), max(filter.Offset, 0),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list loans")
	}
	defer rows.Close()

	loans := []model.Loan{}
	for rows.Next() {
		l, err := scanPgLoan(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan loan")
		}
		loans = append(loans, *l)
	}
	return loans, eris.Wrap(rows.Err(), "postgres: list loans iterate")
}

func (s *PostgresStore) UpdateLoanStatus(ctx context.Context, id string, status model.LoanStatus, approvedAt *time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE loans SET status = $1, approved_at = COALESCE($2, approved_at) WHERE id = $3`,
		string(status), approvedAt, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update loan status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("loan", id)
	}
	return nil
}

// --- messages ---

func (s *PostgresStore) RecordMessage(ctx context.Context, m *model.Message) error {
	m.ID = uuid.New().String()
	if m.SendTime.IsZero() {
		m.SendTime = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, recipient, content, message_type, status, provider_sid, error, send_time) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.To, m.Content, string(m.Type), string(m.Status), m.ProviderSID, m.Error, m.SendTime,
	)
	return eris.Wrap(err, "postgres: insert message")
}

func (s *PostgresStore) UpdateMessageStatus(ctx context.Context, id string, status model.MessageStatus, providerSID, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET status = $1, provider_sid = $2, error = $3 WHERE id = $4`,
		string(status), providerSID, errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update message %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("message", id)
	}
	return nil
}

func scanPgLoan(row scannable) (*model.Loan, error) {
	var l model.Loan
	var risk []byte
	var status string
	err := row.Scan(&l.ID, &l.ClientName, &l.PhoneNumber, &l.Amount, &l.InterestRate, &l.TermMonths,
		&l.Purpose, &status, &risk, &l.CreatedAt, &l.ApprovedAt)
	if err != nil {
		return nil, err
	}
	l.Status = model.LoanStatus(status)
	if len(risk) > 0 {
		l.RiskAnalysis = json.RawMessage(risk)
	}
	return &l, nil
}
