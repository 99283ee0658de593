package schema

import (
	"fmt"
	"time"

	"github.com/cardlake/cardlake/pkg/types"
)

// ColumnType enumerates the supported contract column types.
type ColumnType string

const (
	TypeString    ColumnType = "string"
	TypeInteger   ColumnType = "integer"
	TypeFloat     ColumnType = "float"
	TypeBoolean   ColumnType = "boolean"
	TypeDate      ColumnType = "date"      // "2006-01-02"
	TypeTimestamp ColumnType = "timestamp" // RFC3339
)

// Column is one column of a table contract.
type Column struct {
	Type     ColumnType `yaml:"type"`
	Nullable bool       `yaml:"nullable"`
	Since    int        `yaml:"since,omitempty"` // contract version that introduced the column; 0 means v1
}

// Schema is a versioned structural contract for one table.
type Schema struct {
	Table   string            `yaml:"table"`
	Version int               `yaml:"version"`
	Columns map[string]Column `yaml:"columns"`
}

// validateDefinition checks that a schema definition is well-formed and
// backward compatible: any column added after version 1 must be nullable,
// so records valid under an earlier version stay valid.
func validateDefinition(s *Schema) error {
	if s.Table == "" {
		return fmt.Errorf("schema table name is required")
	}
	if s.Version < 1 {
		return fmt.Errorf("schema %s: version must be >= 1", s.Table)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema %s: at least one column is required", s.Table)
	}
	for name, col := range s.Columns {
		switch col.Type {
		case TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeDate, TypeTimestamp:
		default:
			return fmt.Errorf("schema %s: column %s has unsupported type %q", s.Table, name, col.Type)
		}
		if col.Since > s.Version {
			return fmt.Errorf("schema %s: column %s introduced in v%d, after current v%d",
				s.Table, name, col.Since, s.Version)
		}
		if col.Since > 1 && !col.Nullable {
			return fmt.Errorf("schema %s: column %s added in v%d must be nullable", s.Table, name, col.Since)
		}
	}
	return nil
}

// Validate checks a single row against the contract. It is pure: no side
// effects, no mutation of the row. The first violation found is returned.
func (s *Schema) Validate(row map[string]interface{}) error {
	for name := range row {
		if _, ok := s.Columns[name]; !ok {
			return &types.SchemaViolation{
				Table:    s.Table,
				Field:    name,
				Expected: "no such column",
				Observed: "present",
			}
		}
	}

	for name, col := range s.Columns {
		val, present := row[name]
		if !present || val == nil || val == "" {
			if col.Nullable {
				continue
			}
			return &types.SchemaViolation{
				Table:    s.Table,
				Field:    name,
				Expected: string(col.Type),
				Observed: "null",
			}
		}
		if err := checkType(s.Table, name, col.Type, val); err != nil {
			return err
		}
	}
	return nil
}

func checkType(table, field string, ct ColumnType, val interface{}) error {
	ok := false
	switch ct {
	case TypeString:
		_, ok = val.(string)
	case TypeInteger:
		switch v := val.(type) {
		case int, int32, int64:
			ok = true
		case float64:
			ok = v == float64(int64(v))
		}
	case TypeFloat:
		switch val.(type) {
		case float32, float64, int, int64:
			ok = true
		}
	case TypeBoolean:
		_, ok = val.(bool)
	case TypeDate:
		if s, isStr := val.(string); isStr {
			_, err := time.Parse("2006-01-02", s)
			ok = err == nil
		}
	case TypeTimestamp:
		switch v := val.(type) {
		case time.Time:
			ok = true
		case string:
			_, err := time.Parse(time.RFC3339, v)
			ok = err == nil
		}
	}
	if !ok {
		return &types.SchemaViolation{
			Table:    table,
			Field:    field,
			Expected: string(ct),
			Observed: fmt.Sprintf("%T(%v)", val, val),
		}
	}
	return nil
}
