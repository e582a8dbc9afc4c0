package services

import (
	"context"
	"time"

	"github.com/pulseboardhq/analytics-backend/internal/cache"
	"github.com/pulseboardhq/analytics-backend/internal/errs"
	"github.com/pulseboardhq/analytics-backend/internal/models"
	"github.com/pulseboardhq/analytics-backend/internal/sqlq"
)

// widgetConfigStore is the registry storage interface.
type widgetConfigStore interface {
	GetWidgetConfig(ctx context.Context, widgetKey string) (*models.WidgetConfig, error)
	GetInsightsConfig(ctx context.Context, widgetKey string) (*models.InsightsConfig, error)
}

type registryService struct {
	store          widgetConfigStore
	allowedSchemas []string
	configs        *cache.TTL[*models.WidgetConfig]
	insights       *cache.TTL[*models.InsightsConfig]
}

func NewRegistryService(store widgetConfigStore, allowedSchemas []string, ttl time.Duration, maxSize int, clock cache.Clock) *registryService {
	return &registryService{
		store:          store,
		allowedSchemas: allowedSchemas,
		configs:        cache.NewTTL[*models.WidgetConfig](ttl, maxSize, clock),
		insights:       cache.NewTTL[*models.InsightsConfig](ttl, maxSize, clock),
	}
}

// Load resolves a widget key to its validated configuration and view
// identifier. Lookups are TTL-cached; inactive configs are cached too but
// rejected on every load.
func (s *registryService) Load(ctx context.Context, widgetKey string) (*models.WidgetConfig, sqlq.Identifier, error) {
	cfg, err := s.configs.GetOrPopulate(widgetKey, func() (*models.WidgetConfig, error) {
		cfg, err := s.store.GetWidgetConfig(ctx, widgetKey)
		if err != nil {
			return nil, err
		}
		if cfg == nil {
			return nil, errs.NewConfigNotFoundError(widgetKey)
		}
		applyConfigDefaults(cfg)
		return cfg, nil
	})
	if err != nil {
		return nil, sqlq.Identifier{}, err
	}
	if !cfg.IsActive {
		return nil, sqlq.Identifier{}, errs.NewConfigInactiveError(widgetKey)
	}
	view, err := sqlq.ParseIdentifier(cfg.View, s.allowedSchemas)
	if err != nil {
		return nil, sqlq.Identifier{}, err
	}
	return cfg, view, nil
}

// LoadInsights returns the widget's insights configuration, or nil when the
// widget has none (the overlay then falls back to its prefix map). Absence
// is cached like any other answer so repeated overlay calls for unconfigured
// widgets stay off the registry for the TTL window.
func (s *registryService) LoadInsights(ctx context.Context, widgetKey string) (*models.InsightsConfig, error) {
	return s.insights.GetOrPopulate(widgetKey, func() (*models.InsightsConfig, error) {
		return s.store.GetInsightsConfig(ctx, widgetKey)
	})
}

func applyConfigDefaults(cfg *models.WidgetConfig) {
	if cfg.DateColumn == "" {
		cfg.DateColumn = "date_key"
	}
}
