package dto

// InsightsQuery filters the insights overlay. These negotiate against the
// insights relation independently of the widget filter model.
type InsightsQuery struct {
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
	City     string `json:"city"`
	Severity string `json:"severity"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
}

type InsightsResult struct {
	Items []map[string]any `json:"items"`
}
