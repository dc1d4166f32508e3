package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONMap is a free-form JSON object column, used for the signal
// engine's per-signal detail payload and the scoring aggregator's
// explanation blob. Both are read back by the notifier but never
// queried, so a single opaque jsonb column is enough.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("store: unsupported type for JSONMap scan")
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// GormDataType tells GORM's migrator to use jsonb regardless of driver
// dialect inference.
func (JSONMap) GormDataType() string { return "jsonb" }
