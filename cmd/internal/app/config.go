package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"rpms/cmd/internal/notify"
	"rpms/cmd/internal/realtime"
)

// EnvPrefix is prepended to every configuration variable.
const EnvPrefix = "RPMS_"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogColor  bool   `env:"LOG_COLOR" envDefault:"false"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	MaxHeaderBytes    int           `env:"HTTP_MAX_HEADER_BYTES" envDefault:"1048576"`

	// PollInterval is how often each chat listener drains its user's unread messages.
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"3s"`

	// Empty DatabaseURL selects the in-memory conversation store and the static roster.
	DatabaseURL string `env:"DATABASE_URL"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"0"`
	DBSchema    string `env:"DB_SCHEMA" envDefault:"rpms"`

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool `env:"READINESS_REQUIRE_DB" envDefault:"false"`

	// AlertRoster is the comma-separated static recipient list used when no DB roster is configured.
	AlertRoster string `env:"ALERT_ROSTER"`
	// SystemSenderID is the chat identity panic alerts are sent from.
	SystemSenderID string `env:"SYSTEM_SENDER_ID" envDefault:"rpms-alerts"`
	// VideoBaseURL hosts consultation meeting rooms.
	VideoBaseURL string `env:"VIDEO_BASE_URL" envDefault:"https://rpms-video.example.com"`

	AWSRegion string `env:"AWS_REGION"`

	Notify notify.Config
	WS     realtime.Config `envPrefix:"WS_"`
}

// LoadConfig reads an optional .env file, then parses RPMS_* variables.
func LoadConfig() (Config, error) {
	// The .env file is optional.
	_ = godotenv.Load()
	return parseConfig()
}

func parseConfig() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	switch c.LogFormat {
	case logFormatJSON, logFormatPretty:
	default:
		errs = append(errs, fmt.Errorf("config: unknown log format %q", c.LogFormat))
	}
	switch c.Notify.EmailProvider {
	case notify.ProviderLog, notify.ProviderPostmark:
	default:
		errs = append(errs, fmt.Errorf("config: unknown email provider %q", c.Notify.EmailProvider))
	}
	switch c.Notify.SMSProvider {
	case notify.ProviderLog, notify.ProviderSNS:
	default:
		errs = append(errs, fmt.Errorf("config: unknown sms provider %q", c.Notify.SMSProvider))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("config: poll interval must be positive"))
	}
	if strings.TrimSpace(c.SystemSenderID) == "" {
		errs = append(errs, errors.New("config: system sender id is empty"))
	}
	return errors.Join(errs...)
}
