package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tablebooking/internal/domain"
)

const (
	defaultJWTSecret     = "change-me-jwt-secret"
	defaultWebhookSecret = "change-me-webhook-secret"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Store      StoreConfig      `yaml:"store"`
	Redis      RedisConfig      `yaml:"redis"`
	Venue      VenueConfig      `yaml:"venue"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type StoreConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	LockNoWait   bool          `yaml:"lock_nowait"`
	Serializable bool          `yaml:"serializable"`
}

type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	TableTTL time.Duration `yaml:"table_ttl"`
}

type VenueConfig struct {
	Timezone       string   `yaml:"timezone"`
	MaxAdvanceDays int      `yaml:"max_advance_days"`
	Slots          []string `yaml:"slots"`
	DepositAmount  int64    `yaml:"deposit_amount"`
	Currency       string   `yaml:"currency"`
}

type GatewayConfig struct {
	BaseURL            string        `yaml:"base_url"`
	SecretKey          string        `yaml:"secret_key"`
	WebhookSecret      string        `yaml:"webhook_secret"`
	SignatureTolerance time.Duration `yaml:"signature_tolerance"`
	Timeout            time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	MetricsPath       string `yaml:"metrics_path"`
}

// Load reads the YAML config at path, expanding ${VAR} references from the
// environment (and from .env when present).
func Load(path string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes raw YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "tablebooking"
	}
	if c.App.Environment == "" {
		c.App.Environment = strings.ToLower(getEnv("APP_ENV", "dev"))
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.WriteTimeout <= 0 {
		c.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.DSN == "" {
		c.Database.DSN = getEnv("DATABASE_URL", "tablebooking.db")
	}
	if c.Store.Timeout <= 0 {
		c.Store.Timeout = 5 * time.Second
	}
	if c.Redis.TableTTL <= 0 {
		c.Redis.TableTTL = 5 * time.Minute
	}
	if c.Venue.Timezone == "" {
		c.Venue.Timezone = "UTC"
	}
	if c.Venue.MaxAdvanceDays <= 0 {
		c.Venue.MaxAdvanceDays = 31
	}
	if len(c.Venue.Slots) == 0 {
		c.Venue.Slots = []string{"17:00", "18:00", "19:00", "20:00", "21:00", "22:00", "23:00"}
	}
	if c.Venue.Currency == "" {
		c.Venue.Currency = "gbp"
	}
	if c.Gateway.SignatureTolerance <= 0 {
		c.Gateway.SignatureTolerance = 5 * time.Minute
	}
	if c.Gateway.Timeout <= 0 {
		c.Gateway.Timeout = 10 * time.Second
	}
	if c.Gateway.WebhookSecret == "" {
		c.Gateway.WebhookSecret = defaultWebhookSecret
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = defaultJWTSecret
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 12 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Monitoring.MetricsPath == "" {
		c.Monitoring.MetricsPath = "/metrics"
	}
}

func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Venue.Timezone); err != nil {
		return fmt.Errorf("venue.timezone: %w", err)
	}
	if c.Venue.DepositAmount <= 0 {
		return errors.New("venue.deposit_amount must be > 0")
	}
	if len(c.Venue.Currency) != 3 {
		return errors.New("venue.currency must be a 3-letter code")
	}
	for _, s := range c.Venue.Slots {
		if _, err := domain.SlotHour(s); err != nil {
			return fmt.Errorf("venue.slots: %w", err)
		}
	}
	if c.Gateway.BaseURL == "" {
		return errors.New("gateway.base_url is required")
	}

	if isProdLike(c.App.Environment) {
		if isEmptyOrDefault(c.Auth.JWTSecret, defaultJWTSecret) {
			return errors.New("in prod/release auth.jwt_secret must be set and not default")
		}
		if isEmptyOrDefault(c.Gateway.WebhookSecret, defaultWebhookSecret) {
			return errors.New("in prod/release gateway.webhook_secret must be set and not default")
		}
		if c.Gateway.SecretKey == "" {
			return errors.New("in prod/release gateway.secret_key must be set")
		}
	}
	return nil
}

// Location returns the venue's time zone. Validate guarantees it loads.
func (v VenueConfig) Location() *time.Location {
	loc, err := time.LoadLocation(v.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
