package services

import (
	"context"
	"errors"
	"strings"

	"github.com/pulseboardhq/analytics-backend/internal/dto"
	"github.com/pulseboardhq/analytics-backend/internal/errs"
	"github.com/pulseboardhq/analytics-backend/internal/middleware"
	"github.com/pulseboardhq/analytics-backend/internal/models"
	"github.com/pulseboardhq/analytics-backend/internal/sqlq"
	"github.com/pulseboardhq/analytics-backend/internal/store"
)

// defaultInsightsView is queried when a widget has no explicit insights
// configuration.
const defaultInsightsView = "analytics.agent_insights"

// agentKeyPrefixes maps widget-key prefixes onto the agents whose findings
// overlay them, for widgets without an explicit insights config.
var agentKeyPrefixes = map[string][]string{
	"spend":      {"spend_anomaly"},
	"leads":      {"lead_quality", "lead_volume"},
	"conversion": {"conversion_drop"},
	"campaign":   {"campaign_health"},
	"revenue":    {"revenue_pacing"},
}

type insightsLoader interface {
	LoadInsights(ctx context.Context, widgetKey string) (*models.InsightsConfig, error)
}

type insightsService struct {
	registry       insightsLoader
	schema         schemaReader
	warehouse      rowQuerier
	allowedSchemas []string
	defaultLimit   int
}

func NewInsightsService(registry insightsLoader, schema schemaReader, warehouse rowQuerier, allowedSchemas []string, defaultLimit int) *insightsService {
	return &insightsService{
		registry:       registry,
		schema:         schema,
		warehouse:      warehouse,
		allowedSchemas: allowedSchemas,
		defaultLimit:   defaultLimit,
	}
}

// GetInsights returns agent findings for one widget or agent key. A key with
// no resolvable agents, or an insights relation that is not materialized,
// yields an empty overlay rather than an error.
func (s *insightsService) GetInsights(ctx context.Context, key string, q dto.InsightsQuery) (*dto.InsightsResult, error) {
	agentKeys, viewName, err := s.resolveAgents(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(agentKeys) == 0 {
		return &dto.InsightsResult{Items: []map[string]any{}}, nil
	}

	view, err := sqlq.ParseIdentifier(viewName, s.allowedSchemas)
	if err != nil {
		return nil, err
	}
	columns, err := s.schema.Columns(ctx, view)
	if err != nil {
		return nil, errs.NewDatabaseError("introspect insights view", err.Error())
	}
	if len(columns) == 0 {
		return &dto.InsightsResult{Items: []map[string]any{}}, nil
	}

	agentColumn, ok := resolveColumn([]string{"agent_key", "agent", "agent_name"}, columns)
	if !ok {
		return &dto.InsightsResult{Items: []map[string]any{}}, nil
	}

	builder := sqlq.NewSelect(view)
	members := make([]any, len(agentKeys))
	for i, k := range agentKeys {
		members[i] = k
	}
	builder.Where(sqlq.Condition{Column: agentColumn, Operator: "IN", Value: members})

	if column, ok := resolveColumn([]string{"date_key", "detected_at", "created_at"}, columns); ok {
		if from := strings.TrimSpace(q.DateFrom); from != "" {
			builder.Where(sqlq.Condition{Column: column, Operator: ">=", Value: from})
		}
		if to := strings.TrimSpace(q.DateTo); to != "" {
			builder.Where(sqlq.Condition{Column: column, Operator: "<=", Value: to})
		}
		builder.OrderBy(column, true)
	}
	if city := strings.TrimSpace(q.City); city != "" && !strings.EqualFold(city, "all") {
		if column, ok := resolveColumn([]string{"city", "city_name"}, columns); ok {
			builder.Where(sqlq.Condition{Column: column, Operator: "=", Value: city})
		}
	}
	if severity := strings.TrimSpace(q.Severity); severity != "" {
		if column, ok := resolveColumn([]string{"severity", "severity_level"}, columns); ok {
			builder.Where(sqlq.Condition{Column: column, Operator: "=", Value: severity})
		}
	}
	// Findings are tenant-scoped; a relation with a tenant column must never
	// return another organization's rows.
	if org := middleware.Org(ctx); org != "" {
		if column, ok := resolveColumn([]string{"org_id", "tenant_id", "organization_id"}, columns); ok {
			builder.Where(sqlq.Condition{Column: column, Operator: "=", Value: org})
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	builder.Limit(limit)
	if q.Offset > 0 {
		builder.Offset(q.Offset)
	}

	query, params, err := builder.Build()
	if err != nil {
		return nil, err
	}
	rows, err := s.warehouse.Query(ctx, query, params)
	if err != nil {
		if errors.Is(err, store.ErrMissingRelation) {
			return &dto.InsightsResult{Items: []map[string]any{}}, nil
		}
		return nil, errs.NewDatabaseError("query insights view", err.Error())
	}

	items, _ := normalizeRows(rows, columns, rowContext{columnTypes: columns})
	return &dto.InsightsResult{Items: items}, nil
}

// resolveAgents accepts either a widget key or a bare agent key: explicit
// insights config first, then an exact agent-key match, then the static
// widget-key-prefix map.
func (s *insightsService) resolveAgents(ctx context.Context, key string) ([]string, string, error) {
	cfg, err := s.registry.LoadInsights(ctx, key)
	if err != nil {
		return nil, "", errs.NewDatabaseError("load insights config", err.Error())
	}
	if cfg != nil && len(cfg.AgentKeys) > 0 {
		view := cfg.View
		if view == "" {
			view = defaultInsightsView
		}
		return cfg.AgentKeys, view, nil
	}

	if isKnownAgentKey(key) {
		return []string{key}, defaultInsightsView, nil
	}

	for prefix, keys := range agentKeyPrefixes {
		if strings.HasPrefix(key, prefix) {
			return keys, defaultInsightsView, nil
		}
	}
	return nil, "", nil
}

func isKnownAgentKey(key string) bool {
	for _, keys := range agentKeyPrefixes {
		for _, k := range keys {
			if k == key {
				return true
			}
		}
	}
	return false
}
