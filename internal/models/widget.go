package models

import "github.com/lib/pq"

// WidgetConfig is one registry row: a named analytic query backed by exactly
// one reporting view. Populated and migrated externally; read-only here.
type WidgetConfig struct {
	WidgetKey  string `db:"widget_key" json:"widget_key"`
	View       string `db:"view_name" json:"view"`
	Grain      string `db:"grain" json:"grain"`
	EntityType string `db:"entity_type" json:"entity_type"`

	// DateColumn defaults to "date_key" when unset. CityColumn and
	// EntityIDColumn override the negotiator's candidate resolution.
	DateColumn     string `db:"date_column" json:"date_column"`
	CityColumn     string `db:"city_column" json:"city_column"`
	EntityIDColumn string `db:"entity_id_column" json:"entity_id_column"`

	DefaultFilters StringMap `db:"default_filters" json:"default_filters"`
	DefaultLimit   int       `db:"default_limit" json:"default_limit"`
	DefaultOrderBy string    `db:"default_order_by" json:"default_order_by"`

	// SupportsFilters is an opt-out map: an absent dimension is supported.
	SupportsFilters BoolMap        `db:"supports_filters" json:"supports_filters"`
	RequiredColumns pq.StringArray `db:"required_columns" json:"required_columns"`

	// MetaOverrides carries static per-widget metadata (currency/unit
	// semantics) merged over computed metadata in every result.
	MetaOverrides AnyMap `db:"meta_overrides" json:"meta_overrides"`

	IsActive bool `db:"is_active" json:"is_active"`
}

// Supports reports whether a semantic filter dimension is enabled for this
// widget. Absent keys mean supported (opt-out model).
func (c *WidgetConfig) Supports(dimension string) bool {
	if c.SupportsFilters == nil {
		return true
	}
	supported, present := c.SupportsFilters[dimension]
	if !present {
		return true
	}
	return supported
}

// InsightsConfig links a widget to the agent keys whose findings overlay it.
type InsightsConfig struct {
	WidgetKey string         `db:"widget_key" json:"widget_key"`
	AgentKeys pq.StringArray `db:"agent_keys" json:"agent_keys"`
	View      string         `db:"view_name" json:"view"`
}
