package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type AppConfig struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabasePath   string `env:"DATABASE_PATH" envDefault:"database.db"`
	DatabaseURL    string `env:"DATABASE_URL"`

	SigningSecret string `env:"SIGNING_SECRET"`

	Storage StorageConfig `envPrefix:"S3_"`

	CacheDriver string `env:"CACHE_DRIVER" envDefault:"memory"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	OTLPEndpoint string `env:"OTLP_ENDPOINT"`
	MetricsPort  string `env:"METRICS_PORT" envDefault:"9090"`

	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitConfigs map[string]RateLimitConfig

	EnforceHTTPS bool `env:"ENFORCE_HTTPS" envDefault:"false"`
}

type StorageConfig struct {
	Bucket        string `env:"BUCKET"`
	Region        string `env:"REGION" envDefault:"us-east-1"`
	Endpoint      string `env:"ENDPOINT"`
	AccessKey     string `env:"ACCESS_KEY"`
	SecretKey     string `env:"SECRET_KEY"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

func defaultRateLimits() map[string]RateLimitConfig {
	return map[string]RateLimitConfig{
		"/register": {
			Requests: 5,
			Window:   time.Minute,
		},
		"/login": {
			Requests: 10,
			Window:   time.Minute,
		},
		"/users": {
			Requests: 100,
			Window:   time.Minute,
		},
	}
}

func GetDefaultConfig() *AppConfig {
	return &AppConfig{
		Port:             "8080",
		Environment:      "development",
		DatabaseDriver:   "sqlite",
		DatabasePath:     "database.db",
		CacheDriver:      "memory",
		RedisAddr:        "localhost:6379",
		MetricsPort:      "9090",
		RateLimitEnabled: true,
		RateLimitConfigs: defaultRateLimits(),
		Storage:          StorageConfig{Region: "us-east-1"},
	}
}

// Load reads the configuration from the environment once at startup.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.RateLimitConfigs = defaultRateLimits()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *AppConfig) Validate() error {
	var errs []error

	if c.SigningSecret == "" {
		errs = append(errs, errors.New("SIGNING_SECRET is required"))
	}

	switch c.DatabaseDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DATABASE_DRIVER %q", c.DatabaseDriver))
	}

	if c.CacheDriver != "memory" && c.CacheDriver != "redis" {
		errs = append(errs, fmt.Errorf("unknown CACHE_DRIVER %q", c.CacheDriver))
	}

	if c.Storage.Bucket == "" {
		errs = append(errs, errors.New("S3_BUCKET is required"))
	}

	return errors.Join(errs...)
}

func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}
