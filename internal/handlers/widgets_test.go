package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/pulseboardhq/analytics-backend/internal/dto"
	"github.com/pulseboardhq/analytics-backend/internal/errs"
)

// --- Stubs ---

type stubResponseHandler struct {
	writeSuccessCalled bool
	writeSuccessStatus int
	writeSuccessData   any
	handleErrorCalled  bool
	handledErr         error
}

func (s *stubResponseHandler) WriteSuccess(_ http.ResponseWriter, _ *http.Request, status int, data any) {
	s.writeSuccessCalled = true
	s.writeSuccessStatus = status
	s.writeSuccessData = data
}

func (s *stubResponseHandler) WriteError(_ http.ResponseWriter, _ *http.Request, _ int, _, _ string) {
}

func (s *stubResponseHandler) HandleError(_ http.ResponseWriter, _ *http.Request, err error) {
	s.handleErrorCalled = true
	s.handledErr = err
}

type stubWidgetService struct {
	result       *dto.WidgetResult
	resultErr    error
	meta         *dto.WidgetMeta
	metaErr      error
	dateRange    *dto.WidgetDateRange
	dateRangeErr error
	lastKey      string
	lastQuery    dto.WidgetQuery
}

func (s *stubWidgetService) GetWidget(_ context.Context, widgetKey string, q dto.WidgetQuery) (*dto.WidgetResult, error) {
	s.lastKey = widgetKey
	s.lastQuery = q
	return s.result, s.resultErr
}

func (s *stubWidgetService) GetWidgetMeta(_ context.Context, widgetKey string) (*dto.WidgetMeta, error) {
	s.lastKey = widgetKey
	return s.meta, s.metaErr
}

func (s *stubWidgetService) GetWidgetDateRange(_ context.Context, widgetKey string) (*dto.WidgetDateRange, error) {
	s.lastKey = widgetKey
	return s.dateRange, s.dateRangeErr
}

type stubBatchService struct {
	items   map[string]dto.BatchItem
	err     error
	lastReq dto.BatchRequest
}

func (s *stubBatchService) GetBatch(_ context.Context, req dto.BatchRequest) (map[string]dto.BatchItem, error) {
	s.lastReq = req
	return s.items, s.err
}

type stubInsightsService struct {
	result    *dto.InsightsResult
	err       error
	lastKey   string
	lastQuery dto.InsightsQuery
}

func (s *stubInsightsService) GetInsights(_ context.Context, widgetKey string, q dto.InsightsQuery) (*dto.InsightsResult, error) {
	s.lastKey = widgetKey
	s.lastQuery = q
	return s.result, s.err
}

// withChiParam injects a chi URL parameter into the request context.
func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

func newHandlers(widget *stubWidgetService, batch *stubBatchService, insights *stubInsightsService) (*widgetHandlers, *stubResponseHandler) {
	resp := &stubResponseHandler{}
	h := NewWidgetHandlers(&Deps{
		ResponseHandler: resp,
		WidgetSvc:       widget,
		BatchSvc:        batch,
		InsightsSvc:     insights,
	})
	return h, resp
}

// --- Tests ---

func TestGetWidget_OK(t *testing.T) {
	svc := &stubWidgetService{result: &dto.WidgetResult{Items: []map[string]any{{"spend": 1.0}}}}
	h, resp := newHandlers(svc, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/widgets/spend_by_city?city=austin&limit=25&offset=50&order_by=-spend", nil)
	req = withChiParam(req, "widgetKey", "spend_by_city")
	rr := httptest.NewRecorder()
	h.GetWidget(rr, req)

	if !resp.writeSuccessCalled || resp.writeSuccessStatus != http.StatusOK {
		t.Fatalf("expected WriteSuccess with 200, got called=%v status=%d", resp.writeSuccessCalled, resp.writeSuccessStatus)
	}
	if svc.lastKey != "spend_by_city" {
		t.Errorf("expected widget key forwarded, got %q", svc.lastKey)
	}
	if svc.lastQuery.Filters["city"] != "austin" {
		t.Errorf("expected city filter forwarded, got %v", svc.lastQuery.Filters)
	}
	if svc.lastQuery.Limit != 25 || svc.lastQuery.Offset != 50 || svc.lastQuery.OrderBy != "-spend" {
		t.Errorf("paging not forwarded: %+v", svc.lastQuery)
	}
}

func TestGetWidget_UnknownQueryParamsIgnored(t *testing.T) {
	svc := &stubWidgetService{result: &dto.WidgetResult{}}
	h, _ := newHandlers(svc, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/widgets/w?city=austin&debug=true&foo=bar", nil)
	req = withChiParam(req, "widgetKey", "w")
	h.GetWidget(httptest.NewRecorder(), req)

	if len(svc.lastQuery.Filters) != 1 {
		t.Errorf("expected only known filter params forwarded, got %v", svc.lastQuery.Filters)
	}
}

func TestGetWidget_InvalidPaging(t *testing.T) {
	h, resp := newHandlers(&stubWidgetService{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/widgets/w?limit=banana", nil)
	req = withChiParam(req, "widgetKey", "w")
	h.GetWidget(httptest.NewRecorder(), req)

	if !resp.handleErrorCalled {
		t.Fatal("expected HandleError for invalid limit")
	}
	if _, ok := resp.handledErr.(*errs.ValidationError); !ok {
		t.Errorf("expected ValidationError, got %T", resp.handledErr)
	}
}

func TestGetWidget_ServiceError(t *testing.T) {
	svc := &stubWidgetService{resultErr: errs.NewConfigNotFoundError("w")}
	h, resp := newHandlers(svc, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/widgets/w", nil)
	req = withChiParam(req, "widgetKey", "w")
	h.GetWidget(httptest.NewRecorder(), req)

	if !resp.handleErrorCalled {
		t.Fatal("expected HandleError to be called")
	}
}

func TestGetWidgetMeta_OK(t *testing.T) {
	svc := &stubWidgetService{meta: &dto.WidgetMeta{WidgetKey: "w"}}
	h, resp := newHandlers(svc, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/widgets/w/meta", nil)
	req = withChiParam(req, "widgetKey", "w")
	h.GetWidgetMeta(httptest.NewRecorder(), req)

	if !resp.writeSuccessCalled || resp.writeSuccessStatus != http.StatusOK {
		t.Fatalf("expected WriteSuccess with 200")
	}
}

func TestGetWidgetDateRange_OK(t *testing.T) {
	svc := &stubWidgetService{dateRange: &dto.WidgetDateRange{}}
	h, resp := newHandlers(svc, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/widgets/w/date-range", nil)
	req = withChiParam(req, "widgetKey", "w")
	h.GetWidgetDateRange(httptest.NewRecorder(), req)

	if !resp.writeSuccessCalled {
		t.Fatal("expected WriteSuccess")
	}
}

func TestGetBatch_OK(t *testing.T) {
	svc := &stubBatchService{items: map[string]dto.BatchItem{"a": {}}}
	h, resp := newHandlers(nil, svc, nil)

	body := `{"requests":[{"widget_key":"w1","alias":"a"}],"global_filters":{"city":"austin"}}`
	req := httptest.NewRequest(http.MethodPost, "/widgets/batch", strings.NewReader(body))
	h.GetBatch(httptest.NewRecorder(), req)

	if !resp.writeSuccessCalled || resp.writeSuccessStatus != http.StatusOK {
		t.Fatalf("expected WriteSuccess with 200")
	}
	if svc.lastReq.GlobalFilters["city"] != "austin" {
		t.Errorf("expected global filters decoded, got %v", svc.lastReq.GlobalFilters)
	}
}

func TestGetBatch_MalformedBody(t *testing.T) {
	h, resp := newHandlers(nil, &stubBatchService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/widgets/batch", strings.NewReader("{not json"))
	h.GetBatch(httptest.NewRecorder(), req)

	if !resp.handleErrorCalled {
		t.Fatal("expected HandleError for malformed body")
	}
	if _, ok := resp.handledErr.(*errs.ValidationError); !ok {
		t.Errorf("expected ValidationError, got %T", resp.handledErr)
	}
}

func TestGetInsights_OK(t *testing.T) {
	svc := &stubInsightsService{result: &dto.InsightsResult{Items: []map[string]any{}}}
	h, resp := newHandlers(nil, nil, svc)

	req := httptest.NewRequest(http.MethodGet, "/widgets/w/insights?severity=high&date_from=2026-01-01", nil)
	req = withChiParam(req, "widgetKey", "w")
	h.GetInsights(httptest.NewRecorder(), req)

	if !resp.writeSuccessCalled {
		t.Fatal("expected WriteSuccess")
	}
	if svc.lastQuery.Severity != "high" || svc.lastQuery.DateFrom != "2026-01-01" {
		t.Errorf("insights query not forwarded: %+v", svc.lastQuery)
	}
}
