package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB column scanners for the registry tables.

type StringMap map[string]string

func (m *StringMap) Scan(src any) error          { return scanJSON(src, m) }
func (m StringMap) Value() (driver.Value, error) { return valueJSON(m) }

type BoolMap map[string]bool

func (m *BoolMap) Scan(src any) error          { return scanJSON(src, m) }
func (m BoolMap) Value() (driver.Value, error) { return valueJSON(m) }

type AnyMap map[string]any

func (m *AnyMap) Scan(src any) error          { return scanJSON(src, m) }
func (m AnyMap) Value() (driver.Value, error) { return valueJSON(m) }

func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

func valueJSON(src any) (driver.Value, error) {
	return json.Marshal(src)
}
