package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrMissingRelation signals that a configured view is not materialized yet.
// Callers recover from it locally instead of failing the request.
var ErrMissingRelation = errors.New("relation does not exist")

// pqUndefinedTable is the Postgres error code for "relation does not exist".
// It can race with the introspector's cache window, so the executor maps it
// to ErrMissingRelation rather than propagating.
const pqUndefinedTable = "42P01"

// Warehouse is the read-only analytical data source. Reporting views are
// produced asynchronously by external pipelines, so any relation may be
// absent at any time.
type Warehouse struct {
	db *sqlx.DB
}

func NewWarehouse(db *sqlx.DB) *Warehouse {
	return &Warehouse{db: db}
}

const listColumnsQuery = `
SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2`

// ListColumns returns the live columns of a relation with normalized types.
// An absent relation yields an empty map, not an error: "not materialized
// yet" is a valid state.
func (w *Warehouse) ListColumns(ctx context.Context, schema, relation string) (map[string]string, error) {
	rows, err := w.db.QueryxContext(ctx, listColumnsQuery, schema, relation)
	if err != nil {
		return nil, fmt.Errorf("list columns %s.%s: %w", schema, relation, err)
	}
	defer rows.Close()

	columns := make(map[string]string)
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		columns[name] = normalizeType(dataType)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}
	return columns, nil
}

// Query runs one read-only parameterized statement and returns generic rows.
// The connection is released on every exit path.
func (w *Warehouse) Query(ctx context.Context, query string, params []any) ([]map[string]any, error) {
	rows, err := w.db.QueryxContext(ctx, query, params...)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, ErrMissingRelation
		}
		return nil, err
	}
	defer rows.Close()

	var items []map[string]any
	for rows.Next() {
		item := map[string]any{}
		if err := rows.MapScan(item); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			return nil, ErrMissingRelation
		}
		return nil, err
	}
	return items, nil
}

func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqUndefinedTable
	}
	return false
}

// normalizeType maps Postgres data types onto the small set the negotiator
// coerces against.
func normalizeType(dataType string) string {
	switch t := strings.ToLower(dataType); {
	case t == "smallint" || t == "integer" || t == "bigint":
		return "int"
	case t == "numeric" || t == "decimal" || t == "real" || t == "double precision" || t == "money":
		return "float"
	case t == "boolean":
		return "bool"
	case t == "date":
		return "date"
	case strings.HasPrefix(t, "timestamp"):
		return "datetime"
	case t == "uuid":
		return "uuid"
	case t == "json" || t == "jsonb":
		return "json"
	default:
		return "string"
	}
}
