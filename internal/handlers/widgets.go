package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pulseboardhq/analytics-backend/internal/dto"
	"github.com/pulseboardhq/analytics-backend/internal/errs"
	"github.com/pulseboardhq/analytics-backend/internal/response"
)

type WidgetService interface {
	GetWidget(ctx context.Context, widgetKey string, q dto.WidgetQuery) (*dto.WidgetResult, error)
	GetWidgetMeta(ctx context.Context, widgetKey string) (*dto.WidgetMeta, error)
	GetWidgetDateRange(ctx context.Context, widgetKey string) (*dto.WidgetDateRange, error)
}

type BatchService interface {
	GetBatch(ctx context.Context, req dto.BatchRequest) (map[string]dto.BatchItem, error)
}

type InsightsService interface {
	GetInsights(ctx context.Context, widgetKey string, q dto.InsightsQuery) (*dto.InsightsResult, error)
}

// filterParams are the query parameters forwarded into filter negotiation.
// Everything else on the query string is ignored.
var filterParams = []string{
	dto.FilterDateFrom,
	dto.FilterDateTo,
	dto.FilterCity,
	dto.FilterPlatform,
	dto.FilterChannel,
	dto.FilterDevice,
	dto.FilterProduct,
	dto.FilterBranch,
	dto.FilterSource,
	dto.FilterStatus,
	dto.FilterObjective,
	dto.FilterCampaignID,
	dto.FilterAdsetID,
	dto.FilterAdGroupID,
	dto.FilterConversionType,
	dto.FilterEntityID,
}

type widgetHandlers struct {
	ResponseHandler response.ResponseHandler
	WidgetSvc       WidgetService
	BatchSvc        BatchService
	InsightsSvc     InsightsService
}

func NewWidgetHandlers(deps *Deps) *widgetHandlers {
	return &widgetHandlers{
		ResponseHandler: deps.ResponseHandler,
		WidgetSvc:       deps.WidgetSvc,
		BatchSvc:        deps.BatchSvc,
		InsightsSvc:     deps.InsightsSvc,
	}
}

func (h *widgetHandlers) WidgetRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/batch", h.GetBatch) // must be before /{widgetKey}
	r.Get("/{widgetKey}", h.GetWidget)
	r.Get("/{widgetKey}/meta", h.GetWidgetMeta)
	r.Get("/{widgetKey}/date-range", h.GetWidgetDateRange)
	r.Get("/{widgetKey}/insights", h.GetInsights)
	return r
}

func (h *widgetHandlers) GetWidget(w http.ResponseWriter, r *http.Request) {
	widgetKey := chi.URLParam(r, "widgetKey")
	q, err := parseWidgetQuery(r)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	result, err := h.WidgetSvc.GetWidget(r.Context(), widgetKey, q)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, result)
}

func (h *widgetHandlers) GetWidgetMeta(w http.ResponseWriter, r *http.Request) {
	widgetKey := chi.URLParam(r, "widgetKey")
	meta, err := h.WidgetSvc.GetWidgetMeta(r.Context(), widgetKey)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, meta)
}

func (h *widgetHandlers) GetWidgetDateRange(w http.ResponseWriter, r *http.Request) {
	widgetKey := chi.URLParam(r, "widgetKey")
	dateRange, err := h.WidgetSvc.GetWidgetDateRange(r.Context(), widgetKey)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, dateRange)
}

func (h *widgetHandlers) GetBatch(w http.ResponseWriter, r *http.Request) {
	var req dto.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.ResponseHandler.HandleError(w, r, errs.NewValidationError("invalid batch request body"))
		return
	}
	items, err := h.BatchSvc.GetBatch(r.Context(), req)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, items)
}

func (h *widgetHandlers) GetInsights(w http.ResponseWriter, r *http.Request) {
	widgetKey := chi.URLParam(r, "widgetKey")

	params := r.URL.Query()
	q := dto.InsightsQuery{
		DateFrom: params.Get(dto.FilterDateFrom),
		DateTo:   params.Get(dto.FilterDateTo),
		City:     params.Get(dto.FilterCity),
		Severity: params.Get("severity"),
	}
	var err error
	if q.Limit, err = parseIntParam(params.Get("limit")); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	if q.Offset, err = parseIntParam(params.Get("offset")); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	result, err := h.InsightsSvc.GetInsights(r.Context(), widgetKey, q)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, result)
}

func parseWidgetQuery(r *http.Request) (dto.WidgetQuery, error) {
	params := r.URL.Query()

	filters := map[string]string{}
	for _, name := range filterParams {
		if v := params.Get(name); v != "" {
			filters[name] = v
		}
	}

	q := dto.WidgetQuery{
		Filters: filters,
		OrderBy: params.Get("order_by"),
	}
	var err error
	if q.Limit, err = parseIntParam(params.Get("limit")); err != nil {
		return dto.WidgetQuery{}, err
	}
	if q.Offset, err = parseIntParam(params.Get("offset")); err != nil {
		return dto.WidgetQuery{}, err
	}
	return q, nil
}

func parseIntParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errs.NewValidationError("paging parameters must be non-negative integers")
	}
	return n, nil
}
