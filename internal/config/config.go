package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Upload UploadConfig `yaml:"upload" mapstructure:"upload"`
	SMS    SMSConfig    `yaml:"sms" mapstructure:"sms"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AdminName      string   `yaml:"admin_name" mapstructure:"admin_name"`
	AdminPhone     string   `yaml:"admin_phone" mapstructure:"admin_phone"`
}

// UploadConfig configures spreadsheet uploads.
type UploadConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	MaxBytes int64  `yaml:"max_bytes" mapstructure:"max_bytes"`
}

// SMSConfig holds Twilio credentials and send limits.
type SMSConfig struct {
	AccountSID    string  `yaml:"account_sid" mapstructure:"account_sid"`
	AuthToken     string  `yaml:"auth_token" mapstructure:"auth_token"`
	FromNumber    string  `yaml:"from_number" mapstructure:"from_number"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst         int     `yaml:"burst" mapstructure:"burst"`
	MaxAttempts   int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// Enabled reports whether all credentials are present.
func (c SMSConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MICROFINANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "microfinance.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.admin_name", "Admin")
	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.max_bytes", 16<<20)
	v.SetDefault("sms.base_url", "https://api.twilio.com")
	v.SetDefault("sms.rate_per_second", 1.0)
	v.SetDefault("sms.burst", 1)
	v.SetDefault("sms.max_attempts", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Credentials are commonly supplied without the prefix.
	_ = v.BindEnv("sms.account_sid", "MICROFINANCE_SMS_ACCOUNT_SID", "TWILIO_ACCOUNT_SID")
	_ = v.BindEnv("sms.auth_token", "MICROFINANCE_SMS_AUTH_TOKEN", "TWILIO_AUTH_TOKEN")
	_ = v.BindEnv("sms.from_number", "MICROFINANCE_SMS_FROM_NUMBER", "TWILIO_PHONE_NUMBER")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of "serve",
// "analyze", "risk", "migrate" or "sms".
func (c *Config) Validate(mode string) error {
	var problems []string
	needStore := false

	switch mode {
	case "serve":
		needStore = true
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, fmt.Sprintf("server.port must be > 0 and <= 65535 (got %d)", c.Server.Port))
		}
		if c.Upload.Dir == "" {
			problems = append(problems, "upload.dir is required")
		}
		if c.Upload.MaxBytes <= 0 {
			problems = append(problems, "upload.max_bytes must be > 0")
		}
	case "migrate", "sms":
		needStore = true
	case "analyze", "risk":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needStore {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			problems = append(problems, fmt.Sprintf("store.driver must be sqlite or postgres (got %q)", c.Store.Driver))
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
