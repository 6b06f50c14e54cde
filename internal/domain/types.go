package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// StringList is a []string stored as a JSON column so the same model
// works on postgres and the sqlite test database.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringList) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	b, err := asBytes(value)
	if err != nil {
		return fmt.Errorf("scan StringList: %w", err)
	}
	if len(b) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(b, (*[]string)(s))
}

// JSONMap is a map[string]any stored as a JSON column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	b, err := asBytes(value)
	if err != nil {
		return fmt.Errorf("scan JSONMap: %w", err)
	}
	if len(b) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(b, (*map[string]any)(m))
}

// RowError captures one rejected import row together with the raw data
// that produced it, so failed rows can be corrected and re-submitted.
type RowError struct {
	Row    int               `json:"row"`
	Errors []string          `json:"errors"`
	Data   map[string]string `json:"data,omitempty"`
}

// RowErrorList is a []RowError stored as a JSON column.
type RowErrorList []RowError

func (l RowErrorList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]RowError(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *RowErrorList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	b, err := asBytes(value)
	if err != nil {
		return fmt.Errorf("scan RowErrorList: %w", err)
	}
	if len(b) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(b, (*[]RowError)(l))
}

func asBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("unsupported column type")
	}
}
