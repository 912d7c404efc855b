package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration of the trading API
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Trading   TradingConfig   `mapstructure:"trading"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Events    EventsConfig    `mapstructure:"events"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Env             string        `mapstructure:"env"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	BusyTimeout  int    `mapstructure:"busy_timeout_ms"`
}

// APICredential maps an API key pair to the user it authenticates
type APICredential struct {
	Key    string   `mapstructure:"key"`
	Secret string   `mapstructure:"secret"`
	UserID uint     `mapstructure:"user_id"`
	Roles  []string `mapstructure:"roles"`
}

type AuthConfig struct {
	JWTSecret   string          `mapstructure:"jwt_secret"`
	TokenTTL    time.Duration   `mapstructure:"token_ttl"`
	Credentials []APICredential `mapstructure:"credentials"`
}

// RateLimitConfig holds per-minute request limits by route group
type RateLimitConfig struct {
	AuthPerMinute    float64 `mapstructure:"auth_per_minute"`
	TradingPerMinute float64 `mapstructure:"trading_per_minute"`
	QueryPerMinute   float64 `mapstructure:"query_per_minute"`
	Burst            int     `mapstructure:"burst"`
}

type TradingConfig struct {
	CommissionRate   float64       `mapstructure:"commission_rate"`
	TaxRate          float64       `mapstructure:"tax_rate"`
	Exchange         string        `mapstructure:"exchange"`
	CreditRealizedPL bool          `mapstructure:"credit_realized_pl"`
	FillRetries      int           `mapstructure:"fill_retries"`
	IdempotencyTTL   time.Duration `mapstructure:"idempotency_ttl"`
}

// PricingConfig selects where the execution reference price comes from.
// Mode "client" trusts the submitted currentPrice, "server" uses Quotes.
type PricingConfig struct {
	Mode         string             `mapstructure:"mode"`
	DefaultPrice float64            `mapstructure:"default_price"`
	Quotes       map[string]float64 `mapstructure:"quotes"`
}

type EventsConfig struct {
	Brokers       []string      `mapstructure:"brokers"`
	Topic         string        `mapstructure:"topic"`
	RelayInterval time.Duration `mapstructure:"relay_interval"`
	BatchSize     int           `mapstructure:"batch_size"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
}

const (
	PricingModeClient = "client"
	PricingModeServer = "server"
)

// Load reads the optional YAML file at path, then applies TRADING_* env
// overrides on top of the defaults. An empty path loads defaults and env only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TRADING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}

	applyLegacyEnv(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")

	v.SetDefault("database.dsn", "trading.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.busy_timeout_ms", 5000)

	v.SetDefault("auth.jwt_secret", "klear-secret-key")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.credentials", []map[string]any{
		{"key": "test-api-key", "secret": "test-api-secret", "user_id": 1, "roles": []string{"trade"}},
		{"key": "test-admin-key", "secret": "test-admin-secret", "user_id": 2, "roles": []string{"trade", "admin"}},
	})

	v.SetDefault("ratelimit.auth_per_minute", 10)
	v.SetDefault("ratelimit.trading_per_minute", 100)
	v.SetDefault("ratelimit.query_per_minute", 1000)
	v.SetDefault("ratelimit.burst", 20)

	v.SetDefault("trading.commission_rate", 0.0015)
	v.SetDefault("trading.tax_rate", 0.001)
	v.SetDefault("trading.exchange", "HOSE")
	v.SetDefault("trading.credit_realized_pl", false)
	v.SetDefault("trading.fill_retries", 3)
	v.SetDefault("trading.idempotency_ttl", 24*time.Hour)

	v.SetDefault("pricing.mode", PricingModeClient)
	v.SetDefault("pricing.default_price", 50000)
	v.SetDefault("pricing.quotes", map[string]float64{
		"VIC": 45000,
		"VCB": 95000,
		"FPT": 80000,
		"MWG": 120000,
		"VNM": 70000,
	})

	v.SetDefault("events.brokers", []string{})
	v.SetDefault("events.topic", "trading.events")
	v.SetDefault("events.relay_interval", 5*time.Second)
	v.SetDefault("events.batch_size", 100)
	v.SetDefault("events.max_attempts", 5)
}

// applyLegacyEnv keeps the PORT, ENV and DEBUG variables working
func applyLegacyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if env := os.Getenv("ENV"); env != "" {
		cfg.Server.Env = env
	}
	if os.Getenv("DEBUG") == "true" {
		cfg.Log.Level = "debug"
	}
}

func validate(cfg *Config) error {
	var errs []error
	if cfg.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if cfg.Trading.CommissionRate < 0 || cfg.Trading.TaxRate < 0 {
		errs = append(errs, errors.New("trading fee rates must not be negative"))
	}
	if cfg.Trading.FillRetries < 1 {
		errs = append(errs, errors.New("trading.fill_retries must be at least 1"))
	}
	switch cfg.Pricing.Mode {
	case PricingModeClient, PricingModeServer:
	default:
		errs = append(errs, fmt.Errorf("pricing.mode must be %q or %q, got %q", PricingModeClient, PricingModeServer, cfg.Pricing.Mode))
	}
	if cfg.Events.BatchSize < 1 {
		errs = append(errs, errors.New("events.batch_size must be at least 1"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
