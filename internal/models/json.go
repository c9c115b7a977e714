package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSON type for flexible payload storage.
type JSON map[string]interface{}

// NewJSON builds a JSON value from a plain map.
func NewJSON(m map[string]interface{}) JSON {
	return JSON(m)
}

// Value implements the driver.Valuer interface.
func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface.
func (j *JSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	case nil:
		return nil
	}
	return nil
}

// MarshalJSON returns the JSON encoding.
func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return json.Marshal(map[string]interface{}(j))
}

// UnmarshalJSON sets the JSON encoding.
func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return errors.New("nil pointer")
	}
	return json.Unmarshal(data, (*map[string]interface{})(j))
}

// JSONList is an append-only list of JSON payloads, used for webhook event
// logs on payment intents.
type JSONList []JSON

// Value implements the driver.Valuer interface.
func (l JSONList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]JSON{})
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface.
func (l *JSONList) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	case nil:
		return nil
	}
	return nil
}
