package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/pulseboardhq/analytics-backend/internal/bootstrap"
	"github.com/pulseboardhq/analytics-backend/internal/config"
	"github.com/pulseboardhq/analytics-backend/internal/handlers"
	"github.com/pulseboardhq/analytics-backend/internal/middleware"
	"github.com/pulseboardhq/analytics-backend/internal/response"
	"github.com/pulseboardhq/analytics-backend/internal/router"
	"github.com/pulseboardhq/analytics-backend/internal/services"
	"github.com/pulseboardhq/analytics-backend/internal/store"
)

func exitOnError(message string, err error, log *slog.Logger) {
	if err != nil {
		log.Error(message, "error", err)
		os.Exit(1)
	}
}

func main() {
	// bootstrap
	cfg, err := config.New()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	bs, err := bootstrap.Run(cfg)
	exitOnError("bootstrap failed", err, bs.Log)
	defer bs.Close()

	// stores
	rstore := store.NewRegistryStore(bs.Registry)
	warehouse := store.NewWarehouse(bs.Warehouse)
	ostore := store.NewOrgStore(bs.Registry)

	// services
	regserv := services.NewRegistryService(rstore, cfg.AllowedSchemas, cfg.RegistryTTL, cfg.RegistryCacheSize, nil)
	schserv := services.NewSchemaService(warehouse, cfg.SchemaTTL, cfg.SchemaCacheSize, nil)
	wserv := services.NewWidgetService(regserv, schserv, warehouse, services.WidgetServiceConfig{
		DefaultLimit: cfg.DefaultLimit,
		MaxLimit:     cfg.MaxLimit,
		DefaultCity:  cfg.DefaultCity,
	})
	bserv := services.NewBatchService(wserv, bs.BatchCache, cfg.BatchCacheTTL)
	iserv := services.NewInsightsService(regserv, schserv, warehouse, cfg.AllowedSchemas, cfg.DefaultLimit)

	// response handler
	rh := response.New(bs.Log)

	// dependancies
	deps := new(handlers.Deps)
	deps.Log = bs.Log
	deps.ResponseHandler = rh
	deps.WidgetSvc = wserv
	deps.BatchSvc = bserv
	deps.InsightsSvc = iserv

	// router
	mw := middleware.NewMiddleware(ostore)
	r := router.NewRouter(deps, mw)
	err = http.ListenAndServe(cfg.Addr, r)
	exitOnError("server start failed", err, bs.Log)
}
