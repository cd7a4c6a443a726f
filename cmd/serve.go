package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/microfinance-cli/internal/api"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin and client HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "serve: init store")
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "serve: migrate")
		}

		notifier := initNotifier(cfg.SMS, st)
		if notifier == nil {
			zap.L().Warn("sms credentials not configured, notifications disabled")
		}

		srv := api.New(st, notifier, api.Options{
			UploadDir:      cfg.Upload.Dir,
			MaxUploadBytes: cfg.Upload.MaxBytes,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AdminName:      cfg.Server.AdminName,
			AdminPhone:     cfg.Server.AdminPhone,
		})

		port := resolvePort(servePort, cfg.Server.Port)
		return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", port))
	},
}

// resolvePort prefers the flag over the configured port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
