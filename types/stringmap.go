package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSONStringMap stores the free-form room tags as a single JSON column.
type JSONStringMap map[string]string

// Set returns a copy of the map with the given tag set. An empty value
// removes the tag. The receiver stays untouched, rooms are upserted wholesale.
func (m JSONStringMap) Set(name, value string) JSONStringMap {
	out := make(JSONStringMap, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	if value == "" {
		delete(out, name)
	} else {
		out[name] = value
	}
	return out
}

// Value implements driver.Valuer.
func (m JSONStringMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	raw, err := m.MarshalJSON()
	return string(raw), err
}

// Scan implements sql.Scanner.
func (m *JSONStringMap) Scan(val interface{}) error {
	var raw []byte
	switch v := val.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONStringMap", val)
	}
	return m.UnmarshalJSON(raw)
}

// MarshalJSON keeps a nil map serializing as null rather than an empty object.
func (m JSONStringMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	return json.Marshal(map[string]string(m))
}

func (m *JSONStringMap) UnmarshalJSON(b []byte) error {
	decoded := map[string]string{}
	if err := json.Unmarshal(b, &decoded); err != nil {
		return err
	}
	*m = decoded
	return nil
}

// GormDataType names the type for the column mapping below.
func (m JSONStringMap) GormDataType() string {
	return "jsonstringmap"
}

// GormDBDataType picks the JSON column type per dialect.
func (JSONStringMap) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "sqlite", "mysql":
		return "JSON"
	case "postgres":
		return "JSONB"
	}
	return ""
}
