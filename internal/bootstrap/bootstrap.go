package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/pulseboardhq/analytics-backend/internal/cache"
	"github.com/pulseboardhq/analytics-backend/internal/config"
	"github.com/pulseboardhq/analytics-backend/pkg/logger"
)

type Bootstrap struct {
	Log        *slog.Logger
	Registry   *sqlx.DB
	Warehouse  *sqlx.DB
	BatchCache cache.KV
}

func Run(cfg *config.Config) (*Bootstrap, error) {
	var err error
	bs := new(Bootstrap)

	bs.Log = logger.New(cfg.LogLevel, logger.NewJSONHandler)

	bs.Registry, err = InitPostgres(cfg.RegistryDSN)
	if err != nil {
		return bs, fmt.Errorf("connect registry: %w", err)
	}
	bs.Warehouse, err = InitPostgres(cfg.WarehouseDSN)
	if err != nil {
		return bs, fmt.Errorf("connect warehouse: %w", err)
	}

	// The batch cache is optional; without a path batches always compute.
	if cfg.BatchCachePath != "" {
		bs.BatchCache, err = cache.OpenPudge(cfg.BatchCachePath, nil)
		if err != nil {
			bs.Log.Warn("batch cache unavailable, running uncached", "error", err)
			bs.BatchCache = nil
		}
	}

	return bs, nil
}

func (bs *Bootstrap) Close() {
	if bs.Registry != nil {
		_ = bs.Registry.Close()
	}
	if bs.Warehouse != nil {
		_ = bs.Warehouse.Close()
	}
	if bs.BatchCache != nil {
		_ = bs.BatchCache.Close()
	}
}
