package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// rowContext carries the per-request context the normalizer needs: the
// resolved city column, the effective city value for NULL backfill, and the
// live column→type mapping.
type rowContext struct {
	cityColumn  string
	cityValue   string
	columnTypes map[string]string
}

// normalizeRows converts driver-native values into stable JSON shapes,
// backfills NULL city values, publishes the canonical city_id field on every
// row, and detects the result currency (uniform value or "mixed").
func normalizeRows(rows []map[string]any, columns map[string]string, rc rowContext) ([]map[string]any, string) {
	items := make([]map[string]any, 0, len(rows))
	currency := ""
	mixed := false

	for _, row := range rows {
		item := make(map[string]any, len(row)+1)
		for name, value := range row {
			item[name] = normalizeValue(value, rc.columnTypes[name])
		}

		if rc.cityColumn != "" {
			if item[rc.cityColumn] == nil && rc.cityValue != "" {
				item[rc.cityColumn] = rc.cityValue
			}
			item["city_id"] = item[rc.cityColumn]
		}

		if c, ok := item["currency"].(string); ok && c != "" {
			switch {
			case currency == "":
				currency = c
			case currency != c:
				mixed = true
			}
		}

		items = append(items, item)
	}

	if mixed {
		currency = "mixed"
	}
	return items, currency
}

// normalizeValue maps one driver value onto its JSON shape. lib/pq hands
// back numerics and text as []byte and temporal types as time.Time.
func normalizeValue(value any, columnType string) any {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		switch columnType {
		case "float":
			d, err := decimal.NewFromString(string(v))
			if err != nil {
				return string(v)
			}
			return d.InexactFloat64()
		case "int":
			d, err := decimal.NewFromString(string(v))
			if err != nil {
				return string(v)
			}
			return d.IntPart()
		default:
			return string(v)
		}
	case time.Time:
		if columnType == "date" || isMidnightUTC(v) {
			return v.Format(time.DateOnly)
		}
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	default:
		return v
	}
}

func isMidnightUTC(t time.Time) bool {
	u := t.UTC()
	return u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0
}
