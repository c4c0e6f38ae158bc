package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const AppModeProduction = "PROD"
const AppModeDevelop = "DEV"

type Config struct {
	App      App
	Database Database
	HTTP     HTTP
	Stripe   Stripe
	Bot      Bot
	Worker   Worker
}

type App struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Mode     string `env:"APP_MODE" envDefault:"PROD"`
}

type Database struct {
	DSN             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
}

type HTTP struct {
	Address        string   `env:"RUN_ADDRESS" envDefault:":3000"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

type Stripe struct {
	SecretKey     string        `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET"`
	ServerURL     string        `env:"SERVER_URL"`
	Timeout       time.Duration `env:"STRIPE_TIMEOUT" envDefault:"10s"`
}

type Bot struct {
	Token         string        `env:"BOT_TOKEN"`
	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`
}

type Worker struct {
	Interval  time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1m"`
	StaleAge  time.Duration `env:"RECONCILE_AFTER" envDefault:"30m"`
	BatchSize int           `env:"RECONCILE_BATCH" envDefault:"50"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}
	return Parse()
}

// Parse builds the config from the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing env config: %w", err)
	}
	return &cfg, nil
}

// Requirement names one environment variable a command cannot run without.
type Requirement struct {
	Name  string
	Value func(*Config) string
}

var (
	NeedDatabase      = Requirement{"DATABASE_URL", func(c *Config) string { return c.Database.DSN }}
	NeedStripeKey     = Requirement{"STRIPE_SECRET_KEY", func(c *Config) string { return c.Stripe.SecretKey }}
	NeedWebhookSecret = Requirement{"STRIPE_WEBHOOK_SECRET", func(c *Config) string { return c.Stripe.WebhookSecret }}
	NeedServerURL     = Requirement{"SERVER_URL", func(c *Config) string { return c.Stripe.ServerURL }}
	NeedBotToken      = Requirement{"BOT_TOKEN", func(c *Config) string { return c.Bot.Token }}
)

// AllRequirements is what the server needs.
var AllRequirements = []Requirement{NeedBotToken, NeedStripeKey, NeedWebhookSecret, NeedServerURL, NeedDatabase}

// Missing returns the names of unset required variables.
func (c *Config) Missing(reqs ...Requirement) []string {
	var missing []string
	for _, r := range reqs {
		if strings.TrimSpace(r.Value(c)) == "" {
			missing = append(missing, r.Name)
		}
	}
	return missing
}

func (c *Config) Require(reqs ...Requirement) error {
	if missing := c.Missing(reqs...); len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.App.Mode != AppModeProduction && c.App.Mode != AppModeDevelop {
		return fmt.Errorf("APP_MODE must be %s or %s, got %q", AppModeProduction, AppModeDevelop, c.App.Mode)
	}
	return c.Worker.validate()
}

func (w Worker) validate() error {
	switch {
	case w.BatchSize < 1:
		return fmt.Errorf("RECONCILE_BATCH must be at least 1, got %d", w.BatchSize)
	case w.Interval <= 0:
		return fmt.Errorf("RECONCILE_INTERVAL must be positive, got %s", w.Interval)
	case w.StaleAge < 0:
		return fmt.Errorf("RECONCILE_AFTER must not be negative, got %s", w.StaleAge)
	}
	return nil
}
