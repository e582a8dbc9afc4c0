package services

import (
	"context"
	"time"

	"github.com/pulseboardhq/analytics-backend/internal/cache"
	"github.com/pulseboardhq/analytics-backend/internal/sqlq"
)

// columnLister is the warehouse introspection interface. An absent relation
// yields an empty map, never an error: views are populated asynchronously by
// independent pipelines.
type columnLister interface {
	ListColumns(ctx context.Context, schema, relation string) (map[string]string, error)
}

type schemaService struct {
	source  columnLister
	columns *cache.TTL[map[string]string]
}

func NewSchemaService(source columnLister, ttl time.Duration, maxSize int, clock cache.Clock) *schemaService {
	return &schemaService{
		source:  source,
		columns: cache.NewTTL[map[string]string](ttl, maxSize, clock),
	}
}

// Columns returns the live column→type mapping for one relation, TTL-cached
// per relation. An empty mapping means "not materialized yet" and callers
// must degrade rather than fail.
func (s *schemaService) Columns(ctx context.Context, view sqlq.Identifier) (map[string]string, error) {
	return s.columns.GetOrPopulate(view.Qualified(), func() (map[string]string, error) {
		return s.source.ListColumns(ctx, view.Schema(), view.Relation())
	})
}
