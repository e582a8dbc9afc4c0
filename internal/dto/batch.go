package dto

// BatchRequest bundles multiple independent widget fetches. GlobalFilters
// apply to every widget; per-widget filters override them key by key.
type BatchRequest struct {
	Requests      []BatchWidgetRequest `json:"requests"`
	GlobalFilters map[string]string    `json:"global_filters"`
}

type BatchWidgetRequest struct {
	WidgetKey string            `json:"widget_key"`
	Alias     string            `json:"alias"`
	Filters   map[string]string `json:"filters"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
	OrderBy   string            `json:"order_by"`
}

// BatchItem is the per-alias outcome: a result or a captured error, never
// both. One widget's failure never affects its siblings.
type BatchItem struct {
	Result *WidgetResult `json:"result,omitempty"`
	Error  *BatchError   `json:"error,omitempty"`
}

type BatchError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
