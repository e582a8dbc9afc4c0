package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/pulseboardhq/analytics-backend/internal/models"
)

// RegistryStore reads widget and insights configuration from the registry
// database. The tables are populated and migrated externally.
type RegistryStore struct {
	db *sqlx.DB
}

func NewRegistryStore(db *sqlx.DB) *RegistryStore {
	return &RegistryStore{db: db}
}

const widgetConfigQuery = `
SELECT widget_key, view_name, grain, entity_type,
       date_column, city_column, entity_id_column,
       default_filters, default_limit, default_order_by,
       supports_filters, required_columns, meta_overrides, is_active
FROM widget_configs
WHERE widget_key = $1`

// GetWidgetConfig returns (nil, nil) when no row exists; the registry
// service translates absence into its own error.
func (s *RegistryStore) GetWidgetConfig(ctx context.Context, widgetKey string) (*models.WidgetConfig, error) {
	cfg := &models.WidgetConfig{}
	err := s.db.GetContext(ctx, cfg, widgetConfigQuery, widgetKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get widget config %q: %w", widgetKey, err)
	}
	return cfg, nil
}

const insightsConfigQuery = `
SELECT widget_key, agent_keys, view_name
FROM insights_configs
WHERE widget_key = $1`

// GetInsightsConfig returns (nil, nil) when the widget has no insights row;
// the overlay falls back to its prefix map in that case.
func (s *RegistryStore) GetInsightsConfig(ctx context.Context, widgetKey string) (*models.InsightsConfig, error) {
	cfg := &models.InsightsConfig{}
	err := s.db.GetContext(ctx, cfg, insightsConfigQuery, widgetKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get insights config %q: %w", widgetKey, err)
	}
	return cfg, nil
}
