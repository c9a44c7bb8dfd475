// Package config reads the storefront settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"Storefront/internal/storage"
)

const EnvPrefix = "STOREFRONT"

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	CatalogURL     string        `envconfig:"CATALOG_URL" default:"https://fakestoreapi.com"`
	CatalogTimeout time.Duration `envconfig:"CATALOG_TIMEOUT" default:"10s"`

	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"file"`
	StorageDir     string `envconfig:"STORAGE_DIR" default:"./data"`
	RedisAddr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	PostgresDSN    string `envconfig:"POSTGRES_DSN"`

	TaxRate       string        `envconfig:"TAX_RATE" default:"0.08"`
	CheckoutDelay time.Duration `envconfig:"CHECKOUT_DELAY" default:"2s"`

	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	MetricsToken   string `envconfig:"METRICS_TOKEN"`

	CheckoutRateLimit  int           `envconfig:"CHECKOUT_RATE_LIMIT" default:"10"`
	CheckoutRateWindow time.Duration `envconfig:"CHECKOUT_RATE_WINDOW" default:"1m"`
}

// Load reads an optional .env file and then the STOREFRONT_* variables.
// Variables already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := c.Tax(); err != nil {
		return err
	}
	switch c.StorageBackend {
	case storage.BackendMemory, storage.BackendFile, storage.BackendRedis:
	case storage.BackendPostgres:
		if c.PostgresDSN == "" {
			return errors.New("STOREFRONT_POSTGRES_DSN is required for the postgres storage backend")
		}
	default:
		return fmt.Errorf("%w: %q", storage.ErrUnknownBackend, c.StorageBackend)
	}
	return nil
}

// Tax parses the configured tax rate as a fraction, e.g. 0.08.
func (c *Config) Tax() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid STOREFRONT_TAX_RATE %q: %w", c.TaxRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("STOREFRONT_TAX_RATE %q must be in [0, 1)", c.TaxRate)
	}
	return rate, nil
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:       c.StorageBackend,
		Dir:           c.StorageDir,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		PostgresDSN:   c.PostgresDSN,
	}
}
