package dto

// Filter dimension names form the stable, schema-agnostic client contract.
// Physical column names never leak into these keys.
const (
	FilterDateFrom       = "date_from"
	FilterDateTo         = "date_to"
	FilterCity           = "city"
	FilterPlatform       = "platform"
	FilterChannel        = "channel"
	FilterDevice         = "device"
	FilterProduct        = "product"
	FilterBranch         = "branch"
	FilterSource         = "source"
	FilterStatus         = "status"
	FilterObjective      = "objective"
	FilterCampaignID     = "campaign_id"
	FilterAdsetID        = "adset_id"
	FilterAdGroupID      = "ad_group_id"
	FilterConversionType = "conversion_type"
	FilterEntityID       = "entity_id"
)

// Ignore reasons recorded per dimension.
const (
	IgnoredUnsupported   = "unsupported"
	IgnoredMissingColumn = "missing_column"
)

// WidgetQuery carries the caller's filters, paging and ordering for one
// widget fetch.
type WidgetQuery struct {
	Filters map[string]string `json:"filters"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
	OrderBy string            `json:"order_by"`
}

// WidgetResult is built per call and never persisted.
type WidgetResult struct {
	Items          []map[string]any    `json:"items"`
	HasMore        bool                `json:"has_more"`
	MissingView    bool                `json:"missing_view,omitempty"`
	MissingColumns []string            `json:"missing_columns,omitempty"`
	AppliedFilters map[string]any      `json:"applied_filters"`
	IgnoredFilters map[string][]string `json:"ignored_filters"`
	Meta           map[string]any      `json:"meta"`
}

type WidgetMeta struct {
	WidgetKey       string            `json:"widget_key"`
	Grain           string            `json:"grain"`
	Columns         map[string]string `json:"columns"`
	RequiredColumns []string          `json:"required_columns"`
	MissingColumns  []string          `json:"missing_columns"`
	SupportsFilters map[string]bool   `json:"supports_filters"`
	DefaultFilters  map[string]string `json:"default_filters"`
	DefaultLimit    int               `json:"default_limit"`
	DefaultOrderBy  string            `json:"default_order_by"`
}

type WidgetDateRange struct {
	MinDate *string `json:"min_date"`
	MaxDate *string `json:"max_date"`
}
