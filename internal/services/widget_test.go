package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pulseboardhq/analytics-backend/internal/dto"
	"github.com/pulseboardhq/analytics-backend/internal/errs"
	"github.com/pulseboardhq/analytics-backend/internal/models"
	"github.com/pulseboardhq/analytics-backend/internal/sqlq"
	"github.com/pulseboardhq/analytics-backend/internal/store"
	"github.com/pulseboardhq/analytics-backend/pkg/helpers"
)

// --- Fakes ---

type fakeRegistry struct {
	cfg     *models.WidgetConfig
	loadErr error
}

func (f *fakeRegistry) Load(_ context.Context, widgetKey string) (*models.WidgetConfig, sqlq.Identifier, error) {
	if f.loadErr != nil {
		return nil, sqlq.Identifier{}, f.loadErr
	}
	view, err := sqlq.ParseIdentifier(f.cfg.View, []string{"analytics"})
	if err != nil {
		return nil, sqlq.Identifier{}, err
	}
	return f.cfg, view, nil
}

type fakeSchema struct {
	columns map[string]string
	err     error
}

func (f *fakeSchema) Columns(_ context.Context, _ sqlq.Identifier) (map[string]string, error) {
	return f.columns, f.err
}

type fakeWarehouse struct {
	rows      []map[string]any
	err       error
	calls     int
	lastQuery string
	lastArgs  []any
}

func (f *fakeWarehouse) Query(_ context.Context, query string, params []any) ([]map[string]any, error) {
	f.calls++
	f.lastQuery = query
	f.lastArgs = params
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func testServiceConfig() WidgetServiceConfig {
	return WidgetServiceConfig{DefaultLimit: 100, MaxLimit: 1000, DefaultCity: "houston"}
}

func makeRows(n int) []map[string]any {
	rows := make([]map[string]any, n)
	for i := range rows {
		rows[i] = map[string]any{"city": "austin", "spend": float64(i)}
	}
	return rows
}

// --- Tests ---

func TestGetWidget_ConfigErrorNeverTouchesWarehouse(t *testing.T) {
	wh := &fakeWarehouse{}
	svc := NewWidgetService(
		&fakeRegistry{loadErr: errs.NewConfigNotFoundError("nope")},
		&fakeSchema{},
		wh,
		testServiceConfig(),
	)

	_, err := svc.GetWidget(helpers.TestCtx(), "nope", dto.WidgetQuery{})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*errs.ConfigNotFoundError); !ok {
		t.Errorf("expected ConfigNotFoundError, got %T", err)
	}
	if wh.calls != 0 {
		t.Errorf("warehouse must not be queried for unknown widgets, got %d calls", wh.calls)
	}
}

func TestGetWidget_ZeroColumnsIsMissingView(t *testing.T) {
	wh := &fakeWarehouse{}
	svc := NewWidgetService(
		&fakeRegistry{cfg: baseConfig()},
		&fakeSchema{columns: map[string]string{}},
		wh,
		testServiceConfig(),
	)

	result, err := svc.GetWidget(helpers.TestCtx(), "spend_by_city", dto.WidgetQuery{})
	if err != nil {
		t.Fatalf("GetWidget: %v", err)
	}
	if !result.MissingView {
		t.Error("expected missing_view flag")
	}
	if len(result.Items) != 0 {
		t.Errorf("expected empty items, got %d", len(result.Items))
	}
	if wh.calls != 0 {
		t.Errorf("warehouse must not be queried for missing views, got %d calls", wh.calls)
	}
}

func TestGetWidget_MissingRequiredColumns(t *testing.T) {
	cfg := baseConfig()
	cfg.RequiredColumns = []string{"spend", "revenue"}
	wh := &fakeWarehouse{}
	svc := NewWidgetService(
		&fakeRegistry{cfg: cfg},
		&fakeSchema{columns: baseColumns()}, // has spend, not revenue
		wh,
		testServiceConfig(),
	)

	result, err := svc.GetWidget(helpers.TestCtx(), "spend_by_city", dto.WidgetQuery{})
	if err != nil {
		t.Fatalf("GetWidget: %v", err)
	}
	if len(result.MissingColumns) != 1 || result.MissingColumns[0] != "revenue" {
		t.Errorf("expected missing_columns [revenue], got %v", result.MissingColumns)
	}
	if wh.calls != 0 {
		t.Errorf("warehouse must not be queried when required columns are absent")
	}
}

func TestGetWidget_HasMoreAroundLimit(t *testing.T) {
	cases := []struct {
		name    string
		rows    int
		hasMore bool
		items   int
	}{
		{"below limit", 9, false, 9},
		{"at limit", 10, false, 10},
		{"over limit", 11, true, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wh := &fakeWarehouse{rows: makeRows(tc.rows)}
			svc := NewWidgetService(
				&fakeRegistry{cfg: baseConfig()},
				&fakeSchema{columns: baseColumns()},
				wh,
				testServiceConfig(),
			)

			result, err := svc.GetWidget(helpers.TestCtx(), "spend_by_city", dto.WidgetQuery{Limit: 10})
			if err != nil {
				t.Fatalf("GetWidget: %v", err)
			}
			if result.HasMore != tc.hasMore {
				t.Errorf("expected has_more=%v, got %v", tc.hasMore, result.HasMore)
			}
			if len(result.Items) != tc.items {
				t.Errorf("expected %d items, got %d", tc.items, len(result.Items))
			}
			if !strings.Contains(wh.lastQuery, "LIMIT 11") {
				t.Errorf("expected LIMIT 11 (limit+1), got %q", wh.lastQuery)
			}
		})
	}
}

func TestGetWidget_OrderByDescending(t *testing.T) {
	wh := &fakeWarehouse{}
	svc := NewWidgetService(
		&fakeRegistry{cfg: baseConfig()},
		&fakeSchema{columns: baseColumns()},
		wh,
		testServiceConfig(),
	)

	_, err := svc.GetWidget(helpers.TestCtx(), "spend_by_city", dto.WidgetQuery{OrderBy: "-spend"})
	if err != nil {
		t.Fatalf("GetWidget: %v", err)
	}
	if !strings.Contains(wh.lastQuery, "ORDER BY spend DESC") {
		t.Errorf("expected descending order clause, got %q", wh.lastQuery)
	}
}

func TestGetWidget_OrderByDescSuffix(t *testing.T) {
	wh := &fakeWarehouse{}
	svc := NewWidgetService(
		&fakeRegistry{cfg: baseConfig()},
		&fakeSchema{columns: baseColumns()},
		wh,
		testServiceConfig(),
	)

	_, err := svc.GetWidget(helpers.TestCtx(), "spend_by_city", dto.WidgetQuery{OrderBy: "spend desc"})
	if err != nil {
		t.Fatalf("GetWidget: %v", err)
	}
	if !strings.Contains(wh.lastQuery, "ORDER BY spend DESC") {
		t.Errorf("expected descending order clause, got %q", wh.lastQuery)
	}
}

func TestGetWidget_UnknownOrderColumn(t *testing.T) {
	svc := NewWidgetService(
		&fakeRegistry{cfg: baseConfig()},
		&fakeSchema{columns: baseColumns()},
		&fakeWarehouse{},
		testServiceConfig(),
	)

	_, err := svc.GetWidget(helpers.TestCtx(), "spend_by_city", dto.WidgetQuery{OrderBy: "no_such_column"})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*errs.UnknownOrderColumnError); !ok {
		t.Errorf("expected UnknownOrderColumnError, got %T", err)
	}
}

func TestGetWidget_ViewVanishesBetweenIntrospectionAndQuery(t *testing.T) {
	svc := NewWidgetService(
		&fakeRegistry{cfg: baseConfig()},
		&fakeSchema{columns: baseColumns()},
		&fakeWarehouse{err: store.ErrMissingRelation},
		testServiceConfig(),
	)

	result, err := svc.GetWidget(helpers.TestCtx(), "spend_by_city", dto.WidgetQuery{})
	if err != nil {
		t.Fatalf("GetWidget: %v", err)
	}
	if !result.MissingView {
		t.Error("expected missing_view on relation race")
	}
}

func TestGetWidget_DatabaseErrorPropagates(t *testing.T) {
	svc := NewWidgetService(
		&fakeRegistry{cfg: baseConfig()},
		&fakeSchema{columns: baseColumns()},
		&fakeWarehouse{err: errors.New("connection reset")},
		testServiceConfig(),
	)

	_, err := svc.GetWidget(helpers.TestCtx(), "spend_by_city", dto.WidgetQuery{})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*errs.DatabaseError); !ok {
		t.Errorf("expected DatabaseError, got %T", err)
	}
}

func TestGetWidget_LimitClampedToMax(t *testing.T) {
	wh := &fakeWarehouse{}
	svc := NewWidgetService(
		&fakeRegistry{cfg: baseConfig()},
		&fakeSchema{columns: baseColumns()},
		wh,
		testServiceConfig(),
	)

	_, err := svc.GetWidget(helpers.TestCtx(), "spend_by_city", dto.WidgetQuery{Limit: 50000})
	if err != nil {
		t.Fatalf("GetWidget: %v", err)
	}
	if !strings.Contains(wh.lastQuery, "LIMIT 1001") {
		t.Errorf("expected limit clamped to 1000 (+1), got %q", wh.lastQuery)
	}
}

func TestGetWidgetMeta_ReportsMissingColumns(t *testing.T) {
	cfg := baseConfig()
	cfg.RequiredColumns = []string{"spend", "revenue"}
	svc := NewWidgetService(
		&fakeRegistry{cfg: cfg},
		&fakeSchema{columns: baseColumns()},
		&fakeWarehouse{},
		testServiceConfig(),
	)

	meta, err := svc.GetWidgetMeta(helpers.TestCtx(), "spend_by_city")
	if err != nil {
		t.Fatalf("GetWidgetMeta: %v", err)
	}
	if len(meta.MissingColumns) != 1 || meta.MissingColumns[0] != "revenue" {
		t.Errorf("expected missing_columns [revenue], got %v", meta.MissingColumns)
	}
	if meta.Columns["spend"] != "float" {
		t.Errorf("expected live columns in meta, got %v", meta.Columns)
	}
}

func TestGetWidgetDateRange_MissingDateColumn(t *testing.T) {
	wh := &fakeWarehouse{}
	svc := NewWidgetService(
		&fakeRegistry{cfg: baseConfig()},
		&fakeSchema{columns: map[string]string{"city": "string"}},
		wh,
		testServiceConfig(),
	)

	dr, err := svc.GetWidgetDateRange(helpers.TestCtx(), "spend_by_city")
	if err != nil {
		t.Fatalf("GetWidgetDateRange: %v", err)
	}
	if dr.MinDate != nil || dr.MaxDate != nil {
		t.Errorf("expected null bounds, got %v/%v", dr.MinDate, dr.MaxDate)
	}
	if wh.calls != 0 {
		t.Errorf("expected no query without a date column")
	}
}

func TestGetWidgetDateRange_Bounds(t *testing.T) {
	wh := &fakeWarehouse{rows: []map[string]any{{
		"min_date": []byte("2025-01-01"),
		"max_date": []byte("2026-08-01"),
	}}}
	svc := NewWidgetService(
		&fakeRegistry{cfg: baseConfig()},
		&fakeSchema{columns: baseColumns()},
		wh,
		testServiceConfig(),
	)

	dr, err := svc.GetWidgetDateRange(helpers.TestCtx(), "spend_by_city")
	if err != nil {
		t.Fatalf("GetWidgetDateRange: %v", err)
	}
	if dr.MinDate == nil || *dr.MinDate != "2025-01-01" {
		t.Errorf("expected min 2025-01-01, got %v", dr.MinDate)
	}
	if dr.MaxDate == nil || *dr.MaxDate != "2026-08-01" {
		t.Errorf("expected max 2026-08-01, got %v", dr.MaxDate)
	}
}
