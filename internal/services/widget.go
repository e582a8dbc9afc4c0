package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pulseboardhq/analytics-backend/internal/dto"
	"github.com/pulseboardhq/analytics-backend/internal/errs"
	"github.com/pulseboardhq/analytics-backend/internal/models"
	"github.com/pulseboardhq/analytics-backend/internal/sqlq"
	"github.com/pulseboardhq/analytics-backend/internal/store"
	"github.com/pulseboardhq/analytics-backend/pkg/helpers"
	"github.com/pulseboardhq/analytics-backend/pkg/logger"
)

// configLoader resolves widget keys to validated configurations.
type configLoader interface {
	Load(ctx context.Context, widgetKey string) (*models.WidgetConfig, sqlq.Identifier, error)
}

// schemaReader exposes the cached live-column view of one relation.
type schemaReader interface {
	Columns(ctx context.Context, view sqlq.Identifier) (map[string]string, error)
}

// rowQuerier runs one parameterized read-only statement against the
// warehouse.
type rowQuerier interface {
	Query(ctx context.Context, query string, params []any) ([]map[string]any, error)
}

// WidgetServiceConfig carries the paging and normalization defaults the
// widget service applies when a config leaves them unset.
type WidgetServiceConfig struct {
	DefaultLimit int
	MaxLimit     int
	DefaultCity  string
}

type widgetService struct {
	registry  configLoader
	schema    schemaReader
	warehouse rowQuerier
	cfg       WidgetServiceConfig
}

func NewWidgetService(registry configLoader, schema schemaReader, warehouse rowQuerier, cfg WidgetServiceConfig) *widgetService {
	return &widgetService{
		registry:  registry,
		schema:    schema,
		warehouse: warehouse,
		cfg:       cfg,
	}
}

// GetWidget serves one widget query: load config, introspect the live view,
// negotiate filters, execute, normalize. Missing views and missing required
// columns come back as flagged 200-style payloads, never errors.
func (s *widgetService) GetWidget(ctx context.Context, widgetKey string, q dto.WidgetQuery) (*dto.WidgetResult, error) {
	started := time.Now()

	cfg, view, err := s.registry.Load(ctx, widgetKey)
	if err != nil {
		return nil, err
	}

	columns, err := s.schema.Columns(ctx, view)
	if err != nil {
		return nil, errs.NewDatabaseError("introspect view", err.Error())
	}
	if len(columns) == 0 {
		return missingViewResult(cfg, started), nil
	}
	if missing := missingRequired(cfg, columns); len(missing) > 0 {
		return missingColumnsResult(cfg, missing, started), nil
	}

	neg, err := negotiate(cfg, columns, q.Filters)
	if err != nil {
		return nil, err
	}

	limit := resolveLimit(q.Limit, cfg.DefaultLimit, s.cfg.DefaultLimit, s.cfg.MaxLimit)
	orderColumn, orderDesc, err := resolveOrderBy(q.OrderBy, cfg.DefaultOrderBy, columns)
	if err != nil {
		return nil, err
	}

	builder := sqlq.NewSelect(view).Limit(limit + 1)
	for _, c := range neg.conditions {
		builder.Where(c)
	}
	if orderColumn != "" {
		builder.OrderBy(orderColumn, orderDesc)
	}
	if q.Offset > 0 {
		builder.Offset(q.Offset)
	}

	query, params, err := builder.Build()
	if err != nil {
		return nil, err
	}

	rows, err := s.warehouse.Query(ctx, query, params)
	if err != nil {
		// The view can disappear between introspection and execution.
		if errors.Is(err, store.ErrMissingRelation) {
			logger.FromContext(ctx).Warn("view vanished between introspection and query",
				"widget_key", widgetKey, "view", view.Qualified())
			return missingViewResult(cfg, started), nil
		}
		return nil, errs.NewDatabaseError("query widget view", err.Error())
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	items, currency := normalizeRows(rows, columns, rowContext{
		cityColumn:  effectiveCityColumn(cfg, columns, neg),
		cityValue:   effectiveCityValue(cfg, neg, s.cfg.DefaultCity),
		columnTypes: columns,
	})

	return &dto.WidgetResult{
		Items:          items,
		HasMore:        hasMore,
		AppliedFilters: neg.applied,
		IgnoredFilters: neg.ignored,
		Meta:           buildMeta(cfg, neg, len(items), currency, started),
	}, nil
}

// GetWidgetMeta describes a widget's live shape without running its query.
func (s *widgetService) GetWidgetMeta(ctx context.Context, widgetKey string) (*dto.WidgetMeta, error) {
	cfg, view, err := s.registry.Load(ctx, widgetKey)
	if err != nil {
		return nil, err
	}
	columns, err := s.schema.Columns(ctx, view)
	if err != nil {
		return nil, errs.NewDatabaseError("introspect view", err.Error())
	}
	return &dto.WidgetMeta{
		WidgetKey:       cfg.WidgetKey,
		Grain:           cfg.Grain,
		Columns:         columns,
		RequiredColumns: cfg.RequiredColumns,
		MissingColumns:  missingRequired(cfg, columns),
		SupportsFilters: cfg.SupportsFilters,
		DefaultFilters:  cfg.DefaultFilters,
		DefaultLimit:    resolveLimit(0, cfg.DefaultLimit, s.cfg.DefaultLimit, s.cfg.MaxLimit),
		DefaultOrderBy:  cfg.DefaultOrderBy,
	}, nil
}

// GetWidgetDateRange returns the min/max of the widget's date column, or nil
// bounds when the view or the column is not materialized.
func (s *widgetService) GetWidgetDateRange(ctx context.Context, widgetKey string) (*dto.WidgetDateRange, error) {
	cfg, view, err := s.registry.Load(ctx, widgetKey)
	if err != nil {
		return nil, err
	}
	columns, err := s.schema.Columns(ctx, view)
	if err != nil {
		return nil, errs.NewDatabaseError("introspect view", err.Error())
	}
	if _, ok := columns[cfg.DateColumn]; !ok {
		return &dto.WidgetDateRange{}, nil
	}
	if !sqlq.ValidColumn(cfg.DateColumn) {
		return nil, errs.NewInvalidViewIdentifierError(
			"date column failed identifier validation: " + cfg.DateColumn)
	}

	query := fmt.Sprintf("SELECT MIN(%s) AS min_date, MAX(%s) AS max_date FROM %s",
		cfg.DateColumn, cfg.DateColumn, view.Qualified())
	rows, err := s.warehouse.Query(ctx, query, nil)
	if err != nil {
		if errors.Is(err, store.ErrMissingRelation) {
			return &dto.WidgetDateRange{}, nil
		}
		return nil, errs.NewDatabaseError("query date range", err.Error())
	}
	if len(rows) == 0 {
		return &dto.WidgetDateRange{}, nil
	}

	out := &dto.WidgetDateRange{}
	if v := normalizeValue(rows[0]["min_date"], "date"); v != nil {
		out.MinDate = helpers.Ptr(fmt.Sprint(v))
	}
	if v := normalizeValue(rows[0]["max_date"], "date"); v != nil {
		out.MaxDate = helpers.Ptr(fmt.Sprint(v))
	}
	return out, nil
}

func missingRequired(cfg *models.WidgetConfig, columns map[string]string) []string {
	var missing []string
	for _, required := range cfg.RequiredColumns {
		if _, ok := columns[required]; !ok {
			missing = append(missing, required)
		}
	}
	return missing
}

func missingViewResult(cfg *models.WidgetConfig, started time.Time) *dto.WidgetResult {
	return &dto.WidgetResult{
		Items:          []map[string]any{},
		MissingView:    true,
		AppliedFilters: map[string]any{},
		IgnoredFilters: map[string][]string{},
		Meta:           buildMeta(cfg, nil, 0, "", started),
	}
}

func missingColumnsResult(cfg *models.WidgetConfig, missing []string, started time.Time) *dto.WidgetResult {
	return &dto.WidgetResult{
		Items:          []map[string]any{},
		MissingColumns: missing,
		AppliedFilters: map[string]any{},
		IgnoredFilters: map[string][]string{},
		Meta:           buildMeta(cfg, nil, 0, "", started),
	}
}

func resolveLimit(requested, configured, fallback, max int) int {
	limit := requested
	if limit <= 0 {
		limit = configured
	}
	if limit <= 0 {
		limit = fallback
	}
	if max > 0 && limit > max {
		limit = max
	}
	return limit
}

// resolveOrderBy parses "-col" and "col desc" forms and requires the column
// to exist in the live view.
func resolveOrderBy(requested, configured string, columns map[string]string) (string, bool, error) {
	raw := strings.TrimSpace(requested)
	if raw == "" {
		raw = strings.TrimSpace(configured)
	}
	if raw == "" {
		return "", false, nil
	}

	desc := false
	if strings.HasPrefix(raw, "-") {
		desc = true
		raw = strings.TrimSpace(raw[1:])
	} else if fields := strings.Fields(raw); len(fields) == 2 {
		switch strings.ToLower(fields[1]) {
		case "desc":
			desc = true
			raw = fields[0]
		case "asc":
			raw = fields[0]
		}
	}

	if _, ok := columns[raw]; !ok {
		return "", false, errs.NewUnknownOrderColumnError(raw)
	}
	return raw, desc, nil
}

func effectiveCityColumn(cfg *models.WidgetConfig, columns map[string]string, neg *negotiation) string {
	if neg != nil && neg.cityColumn != "" {
		return neg.cityColumn
	}
	column, _ := resolveColumn(cityCandidates(cfg), columns)
	return column
}

func effectiveCityValue(cfg *models.WidgetConfig, neg *negotiation, defaultCity string) string {
	if neg != nil && neg.cityValue != "" {
		return neg.cityValue
	}
	if v := lookupDefault(cfg, []string{dto.FilterCity}); v != "" && !strings.EqualFold(v, "all") {
		return v
	}
	return defaultCity
}

// buildMeta merges per-widget static overrides over the computed metadata.
func buildMeta(cfg *models.WidgetConfig, neg *negotiation, rowCount int, currency string, started time.Time) map[string]any {
	meta := map[string]any{
		"row_count":  rowCount,
		"latency_ms": time.Since(started).Milliseconds(),
	}
	if neg != nil {
		meta["applied_filters"] = neg.applied
		meta["ignored_filters"] = neg.ignored
	}
	if currency != "" {
		meta["currency"] = currency
	}
	for k, v := range cfg.MetaOverrides {
		meta[k] = v
	}
	return meta
}
