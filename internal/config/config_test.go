package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "microfinance.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "uploads", cfg.Upload.Dir)
	assert.Equal(t, int64(16<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, "https://api.twilio.com", cfg.SMS.BaseURL)
	assert.Equal(t, 3, cfg.SMS.MaxAttempts)
	assert.False(t, cfg.SMS.Enabled())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/mf
log:
  level: debug
  format: console
server:
  port: 9090
upload:
  dir: /var/uploads
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/mf", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/var/uploads", cfg.Upload.Dir)
	// Defaults still apply for unset values
	assert.Equal(t, int64(16<<20), cfg.Upload.MaxBytes)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("MICROFINANCE_STORE_DRIVER", "postgres")
	t.Setenv("MICROFINANCE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadTwilioEnv(t *testing.T) {
	chdirTemp(t)

	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("TWILIO_PHONE_NUMBER", "+15550000000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "AC123", cfg.SMS.AccountSID)
	assert.Equal(t, "+15550000000", cfg.SMS.FromNumber)
	assert.True(t, cfg.SMS.Enabled())
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "test.db"
	cfg.Server.Port = 8080
	cfg.Upload.Dir = "uploads"
	cfg.Upload.MaxBytes = 1024
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		mode    string
		wantErr string
	}{
		{"serve ok", func(*Config) {}, "serve", ""},
		{"analyze needs nothing", func(c *Config) { *c = Config{} }, "analyze", ""},
		{"risk needs nothing", func(c *Config) { *c = Config{} }, "risk", ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "serve", "server.port must be > 0"},
		{"no upload dir", func(c *Config) { c.Upload.Dir = "" }, "serve", "upload.dir is required"},
		{"bad driver", func(c *Config) { c.Store.Driver = "mysql" }, "migrate", "store.driver must be sqlite or postgres"},
		{"no database", func(c *Config) { c.Store.DatabaseURL = "" }, "migrate", "store.database_url is required"},
		{"sms needs a store", func(c *Config) { c.Store.Driver = "" }, "sms", "store.driver must be sqlite or postgres"},
		{"unknown mode", func(*Config) {}, "import", "unknown mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
