package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/microfinance-cli/internal/config"
	"github.com/sells-group/microfinance-cli/internal/notify"
	"github.com/sells-group/microfinance-cli/internal/resilience"
	"github.com/sells-group/microfinance-cli/internal/store"
	"github.com/sells-group/microfinance-cli/pkg/twilio"
)

func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite":
		dsn := sc.DatabaseURL
		if dsn == "" {
			dsn = "microfinance.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{
			MaxConns: sc.MaxConns,
			MinConns: sc.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

// initNotifier returns nil when SMS credentials are not configured.
func initNotifier(sc config.SMSConfig, rec notify.Recorder) *notify.Notifier {
	if !sc.Enabled() {
		return nil
	}
	client := twilio.NewClient(sc.AccountSID, sc.AuthToken, sc.FromNumber,
		twilio.WithBaseURL(sc.BaseURL),
	)
	policy := resilience.DefaultPolicy()
	if sc.MaxAttempts > 0 {
		policy.Attempts = sc.MaxAttempts
	}
	return notify.New(client,
		notify.WithRecorder(rec),
		notify.WithRateLimit(sc.RatePerSecond, sc.Burst),
		notify.WithRetryPolicy(policy),
	)
}
