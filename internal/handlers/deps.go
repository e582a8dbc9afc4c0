package handlers

import (
	"log/slog"

	"github.com/pulseboardhq/analytics-backend/internal/response"
)

type Deps struct {
	Log             *slog.Logger
	ResponseHandler response.ResponseHandler
	WidgetSvc       WidgetService
	BatchSvc        BatchService
	InsightsSvc     InsightsService
}
