package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	LogLevel string `env:"LOGLEVEL" envDefault:"info"`

	// RegistryDSN is the Postgres database holding widget and insights
	// configuration. WarehouseDSN is the read-only analytical warehouse
	// where reporting views are materialized by the ETL pipelines.
	RegistryDSN  string `env:"REGISTRY_DSN"`
	WarehouseDSN string `env:"WAREHOUSE_DSN"`

	// AllowedSchemas is the identifier allow-list for configured views.
	AllowedSchemas []string `env:"ALLOWED_SCHEMAS" envDefault:"analytics,reporting,marts"`

	RegistryTTL       time.Duration `env:"REGISTRY_TTL" envDefault:"5m"`
	RegistryCacheSize int           `env:"REGISTRY_CACHE_SIZE" envDefault:"256"`
	SchemaTTL         time.Duration `env:"SCHEMA_TTL" envDefault:"5m"`
	SchemaCacheSize   int           `env:"SCHEMA_CACHE_SIZE" envDefault:"256"`

	// BatchCachePath points at the embedded KV file backing the batch
	// result cache. Empty disables caching entirely.
	BatchCachePath string        `env:"BATCH_CACHE_PATH"`
	BatchCacheTTL  time.Duration `env:"BATCH_CACHE_TTL" envDefault:"120s"`

	DefaultLimit int `env:"DEFAULT_LIMIT" envDefault:"100"`
	MaxLimit     int `env:"MAX_LIMIT" envDefault:"1000"`

	// DefaultCity backfills NULL city values when no city filter applies.
	DefaultCity string `env:"DEFAULT_CITY"`
}

func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
