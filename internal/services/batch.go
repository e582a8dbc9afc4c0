package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pulseboardhq/analytics-backend/internal/dto"
	"github.com/pulseboardhq/analytics-backend/internal/errs"
	"github.com/pulseboardhq/analytics-backend/internal/middleware"
	"github.com/pulseboardhq/analytics-backend/pkg/logger"
)

// batchCacheVersion namespaces cache keys by payload format. Bump it when
// the serialized WidgetResult shape changes so stale formats miss.
const batchCacheVersion = "v1"

// widgetFetcher is the single-widget surface the orchestrator fans out to.
type widgetFetcher interface {
	GetWidget(ctx context.Context, widgetKey string, q dto.WidgetQuery) (*dto.WidgetResult, error)
}

// batchKV is the optional shared result cache. A nil cache means
// always-compute.
type batchKV interface {
	Get(key string) (string, bool, error)
	Set(key string, value string, ttl time.Duration) error
}

type batchService struct {
	widgets widgetFetcher
	kv      batchKV
	ttl     time.Duration

	// cacheDown flips on the first backend error and stays set; a broken
	// cache must never make batches slower or flakier than no cache.
	cacheDown atomic.Bool
}

func NewBatchService(widgets widgetFetcher, kv batchKV, ttl time.Duration) *batchService {
	return &batchService{widgets: widgets, kv: kv, ttl: ttl}
}

// GetBatch fans a batch request out sequentially, one widget at a time, with
// per-alias error isolation. Results are cached per (org, widget, merged
// query) with a short TTL.
func (s *batchService) GetBatch(ctx context.Context, req dto.BatchRequest) (map[string]dto.BatchItem, error) {
	if len(req.Requests) == 0 {
		return nil, errs.NewValidationError("batch request requires at least one widget")
	}

	org := middleware.Org(ctx)
	items := make(map[string]dto.BatchItem, len(req.Requests))

	for _, wr := range req.Requests {
		alias := wr.Alias
		if alias == "" {
			alias = wr.WidgetKey
		}
		if wr.WidgetKey == "" {
			items[alias] = dto.BatchItem{Error: &dto.BatchError{
				Code:    "invalid_input",
				Message: "widget_key is required",
			}}
			continue
		}

		query := mergeQuery(req.GlobalFilters, wr)
		key := s.cacheKey(org, wr.WidgetKey, query)

		if cached, ok := s.cacheGet(ctx, key); ok {
			items[alias] = dto.BatchItem{Result: cached}
			continue
		}

		result, err := s.widgets.GetWidget(ctx, wr.WidgetKey, query)
		if err != nil {
			items[alias] = dto.BatchItem{Error: toBatchError(err)}
			continue
		}
		items[alias] = dto.BatchItem{Result: result}
		s.cacheSet(ctx, key, result)
	}

	return items, nil
}

// mergeQuery layers per-widget filters over the batch-wide ones, key by key.
func mergeQuery(global map[string]string, wr dto.BatchWidgetRequest) dto.WidgetQuery {
	filters := make(map[string]string, len(global)+len(wr.Filters))
	for k, v := range global {
		filters[k] = v
	}
	for k, v := range wr.Filters {
		filters[k] = v
	}
	return dto.WidgetQuery{
		Filters: filters,
		Limit:   wr.Limit,
		Offset:  wr.Offset,
		OrderBy: wr.OrderBy,
	}
}

// cacheKey hashes the canonical (sorted) merged query, namespaced by org,
// widget key and format version. Identical logical queries collide on
// purpose.
func (s *batchService) cacheKey(org, widgetKey string, q dto.WidgetQuery) string {
	keys := make([]string, 0, len(q.Filters))
	for k, v := range q.Filters {
		if strings.TrimSpace(v) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s=%s;", k, q.Filters[k])
	}
	fmt.Fprintf(&sb, "limit=%d;offset=%d;order_by=%s", q.Limit, q.Offset, q.OrderBy)

	sum := sha256.Sum256([]byte(sb.String()))
	return fmt.Sprintf("%s|%s|%s|%s", org, widgetKey, batchCacheVersion, hex.EncodeToString(sum[:]))
}

func (s *batchService) cacheGet(ctx context.Context, key string) (*dto.WidgetResult, bool) {
	if s.kv == nil || s.cacheDown.Load() {
		return nil, false
	}
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		s.disableCache(ctx, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var result dto.WidgetResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		// A corrupt entry is a miss, not an outage.
		return nil, false
	}
	result.Meta = withCacheTag(result.Meta)
	return &result, true
}

func (s *batchService) cacheSet(ctx context.Context, key string, result *dto.WidgetResult) {
	if s.kv == nil || s.cacheDown.Load() {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.kv.Set(key, string(raw), s.ttl); err != nil {
		s.disableCache(ctx, err)
	}
}

func (s *batchService) disableCache(ctx context.Context, err error) {
	if s.cacheDown.CompareAndSwap(false, true) {
		logger.FromContext(ctx).Error("batch cache backend failed, disabling cache", "error", err)
	}
}

func withCacheTag(meta map[string]any) map[string]any {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["cached"] = true
	return meta
}

// toBatchError maps a widget error onto the per-item payload using the same
// taxonomy the HTTP layer uses.
func toBatchError(err error) *dto.BatchError {
	switch err.(type) {
	case *errs.ConfigNotFoundError, *errs.ConfigInactiveError:
		return &dto.BatchError{Code: "not_found", Message: err.Error()}
	case *errs.InvalidFilterValueError, *errs.UnknownOrderColumnError, *errs.ValidationError:
		return &dto.BatchError{Code: "invalid_input", Message: err.Error()}
	default:
		return &dto.BatchError{Code: "internal_error", Message: "failed to load widget"}
	}
}
