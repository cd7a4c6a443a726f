package main

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/microfinance-cli/internal/model"
	"github.com/sells-group/microfinance-cli/internal/notify"
	"github.com/sells-group/microfinance-cli/internal/store"
)

var (
	smsLoanID string
	smsAmount float64
	smsDue    string
)

var smsCmd = &cobra.Command{
	Use:   "sms",
	Short: "Send loan SMS notifications",
}

var smsReminderCmd = &cobra.Command{
	Use:   "reminder",
	Short: "Remind a borrower of an upcoming payment",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkSMSAmount(smsAmount); err != nil {
			return err
		}
		return withLoanNotifier(cmd, func(ctx context.Context, n *notify.Notifier, loan *model.Loan) error {
			body := notify.PaymentReminder(loan.ClientName, smsAmount, smsDue)
			return sendLoanSMS(ctx, cmd.OutOrStdout(), n, loan, body, model.MessageReminder)
		})
	},
}

var smsPaymentCmd = &cobra.Command{
	Use:   "payment",
	Short: "Confirm a received payment to the borrower",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkSMSAmount(smsAmount); err != nil {
			return err
		}
		return withLoanNotifier(cmd, func(ctx context.Context, n *notify.Notifier, loan *model.Loan) error {
			body := notify.PaymentConfirmation(loan.ClientName, smsAmount, loan.ID)
			return sendLoanSMS(ctx, cmd.OutOrStdout(), n, loan, body, model.MessageNotification)
		})
	},
}

// checkSMSAmount rejects the NaN and Inf values pflag accepts for --amount.
func checkSMSAmount(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return eris.Errorf("sms: --amount must be a finite number, got %v", v)
	}
	return nil
}

// withLoanNotifier opens the store, loads the loan named by --loan and
// hands both to fn along with a configured notifier.
func withLoanNotifier(cmd *cobra.Command, fn func(context.Context, *notify.Notifier, *model.Loan) error) error {
	ctx := cmd.Context()

	st, err := initStore(ctx, cfg.Store)
	if err != nil {
		return eris.Wrap(err, "sms: init store")
	}
	defer st.Close() //nolint:errcheck

	n := initNotifier(cfg.SMS, st)
	if n == nil {
		return notify.ErrNotConfigured
	}
	return runLoanSMS(ctx, st, n, smsLoanID, fn)
}

func runLoanSMS(ctx context.Context, st store.Store, n *notify.Notifier, loanID string,
	fn func(context.Context, *notify.Notifier, *model.Loan) error) error {
	loan, err := st.GetLoan(ctx, loanID)
	if err != nil {
		return err
	}
	if loan.PhoneNumber == "" {
		return eris.Errorf("sms: loan %s has no phone number", loan.ID)
	}
	return fn(ctx, n, loan)
}

func sendLoanSMS(ctx context.Context, out io.Writer, n *notify.Notifier, loan *model.Loan, body string, typ model.MessageType) error {
	msg, err := n.Send(ctx, loan.PhoneNumber, body, typ)
	if err != nil {
		return eris.Wrapf(err, "sms: send to loan %s", loan.ID)
	}
	fmt.Fprintf(out, "%s %s (%s)\n", msg.Status, msg.To, msg.ProviderSID)
	return nil
}

func init() {
	for _, c := range []*cobra.Command{smsReminderCmd, smsPaymentCmd} {
		c.Flags().StringVar(&smsLoanID, "loan", "", "loan ID")
		c.Flags().Float64Var(&smsAmount, "amount", 0, "payment amount")
		_ = c.MarkFlagRequired("loan")
		_ = c.MarkFlagRequired("amount")
		smsCmd.AddCommand(c)
	}
	smsReminderCmd.Flags().StringVar(&smsDue, "due", "", "due date shown to the borrower")
	_ = smsReminderCmd.MarkFlagRequired("due")
	rootCmd.AddCommand(smsCmd)
}
