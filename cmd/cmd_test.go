//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/microfinance-cli/internal/analysis"
	"github.com/sells-group/microfinance-cli/internal/config"
	"github.com/sells-group/microfinance-cli/internal/model"
	"github.com/sells-group/microfinance-cli/internal/notify"
	"github.com/sells-group/microfinance-cli/internal/resilience"
	"github.com/sells-group/microfinance-cli/internal/risk"
	"github.com/sells-group/microfinance-cli/internal/sheet"
	"github.com/sells-group/microfinance-cli/internal/store"
	"github.com/sells-group/microfinance-cli/pkg/twilio"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "analyze", "risk", "migrate", "sms"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "microfinance-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCommandMode(t *testing.T) {
	tests := []struct {
		cmd  *cobra.Command
		want string
	}{
		{serveCmd, "serve"},
		{analyzeCmd, "analyze"},
		{smsReminderCmd, "sms"},
		{smsPaymentCmd, "sms"},
		{rootCmd, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, commandMode(tt.cmd), tt.cmd.Name())
	}
}

func TestCommandFlags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)

	flag = analyzeCmd.Flags().Lookup("format")
	require.NotNil(t, flag)
	assert.Equal(t, "json", flag.DefValue)

	for _, name := range []string{"amount", "term", "rate"} {
		assert.NotNil(t, riskCmd.Flags().Lookup(name), "risk should have --%s", name)
	}
	assert.NotNil(t, smsReminderCmd.Flags().Lookup("due"))
	assert.Nil(t, smsPaymentCmd.Flags().Lookup("due"))
}

func TestResolvePort(t *testing.T) {
	assert.Equal(t, 9090, resolvePort(9090, 8080))
	assert.Equal(t, 8080, resolvePort(0, 8080))
}

// --- risk ---

func TestRunRisk(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runRisk(&buf, 5000, 12, 10))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.InDelta(t, 45, got["risk_score"], 1e-9)
	assert.Equal(t, "Medium", got["risk_category"])
}

func TestRunRisk_Invalid(t *testing.T) {
	err := runRisk(&bytes.Buffer{}, 5000, 0, 10)
	var ve *risk.ValidationError
	assert.True(t, errors.As(err, &ve))
}

// --- analyze ---

func testReport(t *testing.T) *analysis.Report {
	t.Helper()
	tbl := sheet.NewTable(
		[]string{"Agent", "Loan Amount", "Commission"},
		[][]sheet.Value{
			{sheet.Text("alice"), sheet.Number(100), sheet.Number(10)},
			{sheet.Text("bob"), sheet.Number(300), sheet.Number(25)},
		},
	)
	return analysis.Run(context.Background(), tbl, nil)
}

func TestWriteReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, testReport(t), "json"))

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Contains(t, got, "summary")
	assert.Contains(t, got, "financial")
	assert.Contains(t, got, "commission")
	assert.Contains(t, got, "outcomes")
}

func TestWriteReport_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, testReport(t), "yaml"))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "summary:\n"), out)
	assert.Contains(t, out, "outcomes:\n  commission:\n    status: ok\n")
	assert.NotContains(t, out, `"rows"`)
	assert.Less(t, strings.Index(out, "financial:"), strings.Index(out, "commission:"))
}

func TestWriteReport_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, testReport(t), "text"))

	out := buf.String()
	assert.Contains(t, out, "Rows:")
	assert.Contains(t, out, "Total Loan Amount:")
	assert.Contains(t, out, "400.00")
	assert.Contains(t, out, "#1 bob")
	assert.Contains(t, out, "ANALYSIS")
	assert.Contains(t, out, "commission")
}

func TestWriteReport_UnknownFormat(t *testing.T) {
	err := writeReport(&bytes.Buffer{}, testReport(t), "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

// --- store / notifier ---

func TestInitStore(t *testing.T) {
	st, err := initStore(context.Background(), config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "mf.db"),
	})
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	_, err = initStore(context.Background(), config.StoreConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestInitNotifier(t *testing.T) {
	assert.Nil(t, initNotifier(config.SMSConfig{}, nil))

	n := initNotifier(config.SMSConfig{
		AccountSID:    "AC1",
		AuthToken:     "tok",
		FromNumber:    "+15550000000",
		BaseURL:       "http://127.0.0.1:0",
		RatePerSecond: 1,
		Burst:         1,
		MaxAttempts:   2,
	}, nil)
	require.NotNil(t, n)
	assert.True(t, n.Configured())
}

type captureSMS struct {
	to, body string
}

func (c *captureSMS) SendSMS(_ context.Context, to, body string) (*twilio.Message, error) {
	c.to, c.body = to, body
	return &twilio.Message{SID: "SM42", To: to, Body: body}, nil
}

func TestRunLoanSMS(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "mf.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	withPhone := &model.Loan{ClientName: "Ama", PhoneNumber: "+233200000000", Amount: 500, InterestRate: 10, TermMonths: 6}
	noPhone := &model.Loan{ClientName: "Kofi", Amount: 500, InterestRate: 10, TermMonths: 6}
	require.NoError(t, st.CreateLoan(ctx, withPhone))
	require.NoError(t, st.CreateLoan(ctx, noPhone))

	sms := &captureSMS{}
	n := notify.New(sms, notify.WithRecorder(st), notify.WithRetryPolicy(resilience.Policy{Attempts: 1}))

	var buf bytes.Buffer
	remind := func(ctx context.Context, n *notify.Notifier, loan *model.Loan) error {
		return sendLoanSMS(ctx, &buf, n, loan, notify.PaymentReminder(loan.ClientName, 125, "2024-07-01"), model.MessageReminder)
	}

	require.NoError(t, runLoanSMS(ctx, st, n, withPhone.ID, remind))
	assert.Equal(t, "+233200000000", sms.to)
	assert.Contains(t, sms.body, "payment of $125.00 is due on 2024-07-01")
	assert.Equal(t, "sent +233200000000 (SM42)\n", buf.String())

	err = runLoanSMS(ctx, st, n, noPhone.ID, remind)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no phone number")

	err = runLoanSMS(ctx, st, n, "missing", remind)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestSMSCommands_RejectNonFiniteAmount(t *testing.T) {
	orig := smsAmount
	t.Cleanup(func() { smsAmount = orig })

	for _, amount := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		smsAmount = amount
		for _, c := range []*cobra.Command{smsReminderCmd, smsPaymentCmd} {
			var err error
			require.NotPanics(t, func() { err = c.RunE(c, nil) })
			require.Error(t, err, c.Name())
			assert.Contains(t, err.Error(), "--amount must be a finite number")
		}
	}
	assert.NoError(t, checkSMSAmount(125.5))
}
