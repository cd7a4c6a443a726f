package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/microfinance-cli/internal/risk"
)

var (
	riskAmount float64
	riskTerm   int
	riskRate   float64
)

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Score a loan application and print its repayment terms",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRisk(cmd.OutOrStdout(), riskAmount, riskTerm, riskRate)
	},
}

func runRisk(out io.Writer, amount float64, term int, rate float64) error {
	a, err := risk.Score(amount, term, rate)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(a), "risk: encode")
}

func init() {
	riskCmd.Flags().Float64Var(&riskAmount, "amount", 0, "loan principal")
	riskCmd.Flags().IntVar(&riskTerm, "term", 0, "term in months")
	riskCmd.Flags().Float64Var(&riskRate, "rate", 0, "annual interest rate in percent")
	for _, f := range []string{"amount", "term", "rate"} {
		_ = riskCmd.MarkFlagRequired(f)
	}
	rootCmd.AddCommand(riskCmd)
}
