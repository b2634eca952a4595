package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	NotifySinkDB  = "db"
	NotifySinkLog = "log"
)

type APIConfig struct {
	// PORT wins over AKIVERSE_API_ADDR when set, for platforms that assign it.
	Port string `envconfig:"PORT"`
	Addr string `envconfig:"AKIVERSE_API_ADDR" default:":8080"`

	DatabaseURL   string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns    int32  `envconfig:"DB_MAX_CONNS" default:"20"`
	DBMinConns    int32  `envconfig:"DB_MIN_CONNS" default:"2"`
	RunMigrations bool   `envconfig:"AKIVERSE_RUN_MIGRATIONS" default:"true"`

	ManagerUserID string `envconfig:"AKIVERSE_MANAGER_USER_ID"`
	Timezone      string `envconfig:"AKIVERSE_TIMEZONE" default:"Asia/Tokyo"`
	CatalogFile   string `envconfig:"AKIVERSE_CATALOG_FILE"`

	InstallationFee   decimal.Decimal `envconfig:"AKIVERSE_INSTALLATION_FEE" default:"10"`
	DismantleFeeTeras decimal.Decimal `envconfig:"AKIVERSE_DISMANTLE_FEE_TERAS" default:"100"`
	DismantleFeeAkv   decimal.Decimal `envconfig:"AKIVERSE_DISMANTLE_FEE_AKV" default:"1"`

	NotifySink      string `envconfig:"AKIVERSE_NOTIFY_SINK" default:"db"`
	NotifyWorkers   int    `envconfig:"AKIVERSE_NOTIFY_WORKERS" default:"4"`
	NotifyQueueSize int    `envconfig:"AKIVERSE_NOTIFY_QUEUE_SIZE" default:"1000"`

	LogLevel       string        `envconfig:"AKIVERSE_LOG_LEVEL" default:"info"`
	RequestTimeout time.Duration `envconfig:"AKIVERSE_REQUEST_TIMEOUT" default:"30s"`
}

type CLIConfig struct {
	APIBaseURL string `envconfig:"AKV_API_BASE_URL" default:"http://localhost:8080"`
}

func LoadAPIFromEnv() (APIConfig, error) {
	var cfg APIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.ManagerUserID = strings.TrimSpace(cfg.ManagerUserID)
	if port := strings.TrimSpace(cfg.Port); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Addr = port
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c APIConfig) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.ManagerUserID == "" {
		return fmt.Errorf("AKIVERSE_MANAGER_USER_ID is required")
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be > 0")
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be within [0, DB_MAX_CONNS]")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	for name, fee := range map[string]decimal.Decimal{
		"AKIVERSE_INSTALLATION_FEE":    c.InstallationFee,
		"AKIVERSE_DISMANTLE_FEE_TERAS": c.DismantleFeeTeras,
		"AKIVERSE_DISMANTLE_FEE_AKV":   c.DismantleFeeAkv,
	} {
		if fee.IsNegative() {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	switch c.NotifySink {
	case NotifySinkDB, NotifySinkLog:
	default:
		return fmt.Errorf("AKIVERSE_NOTIFY_SINK must be %q or %q", NotifySinkDB, NotifySinkLog)
	}
	if c.NotifyWorkers <= 0 {
		return fmt.Errorf("AKIVERSE_NOTIFY_WORKERS must be > 0")
	}
	if c.NotifyQueueSize <= 0 {
		return fmt.Errorf("AKIVERSE_NOTIFY_QUEUE_SIZE must be > 0")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Location is the region whose calendar day bounds daily play caps.
func (c APIConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("AKIVERSE_TIMEZONE: %w", err)
	}
	return loc, nil
}

func (c APIConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return lvl, fmt.Errorf("AKIVERSE_LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

func LoadCLIFromEnv() CLIConfig {
	var cfg CLIConfig
	if err := envconfig.Process("", &cfg); err != nil || strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = "http://localhost:8080"
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	return cfg
}
