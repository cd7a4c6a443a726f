package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/microfinance-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "microfinance-cli",
	Short: "Spreadsheet analytics and loan risk scoring for microfinance teams",
	Long:  "Analyzes uploaded loan spreadsheets (summary, financial and commission reports), scores loan applications for risk, and serves the admin and client API with SMS notifications.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		if mode := commandMode(cmd); mode != "" {
			if err := cfg.Validate(mode); err != nil {
				return err
			}
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// commandMode names the top-level command being run, or "" for commands
// without config requirements such as help.
func commandMode(cmd *cobra.Command) string {
	for cmd.HasParent() && cmd.Parent().HasParent() {
		cmd = cmd.Parent()
	}
	switch name := cmd.Name(); name {
	case "serve", "analyze", "risk", "migrate", "sms":
		return name
	}
	return ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
