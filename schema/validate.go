package schema

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrNoKeyColumn       = errors.New("at least one key column is required")
	ErrMultipleGenerated = errors.New("only one generated column is allowed")
	ErrGeneratedNotKey   = errors.New("generated column must be a key column")
	ErrNullableKey       = errors.New("key column cannot be nullable")
)

// SchemaError reports a mapping that violates the key invariants.
type SchemaError struct {
	Type   reflect.Type
	Column string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("schema %s: column %s: %v", e.Type, e.Column, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Validate checks the key invariants of t: one or more key columns, at most
// one generated column, generated columns are keys, and keys are not
// nullable.
func (r *Registry) Validate(t reflect.Type) error {
	m, err := r.Mapping(t)
	if err != nil {
		return err
	}
	return m.Validate()
}

// Validate checks the key invariants of the mapping.
func (m *Mapping) Validate() error {
	return validateColumns(m.Type, m.Columns)
}

func validateColumns(t reflect.Type, columns []*Column) error {
	var (
		keys      int
		generated *Column
	)

	for _, col := range columns {
		if col.IsKey {
			keys++
		}
		if !col.IsGenerated {
			continue
		}
		if generated != nil {
			return &SchemaError{Type: t, Column: col.ColumnName, Err: ErrMultipleGenerated}
		}
		generated = col
	}

	if keys == 0 {
		return &SchemaError{Type: t, Err: ErrNoKeyColumn}
	}
	if generated != nil && !generated.IsKey {
		return &SchemaError{Type: t, Column: generated.ColumnName, Err: ErrGeneratedNotKey}
	}

	for _, col := range columns {
		if col.IsKey && col.IsNullable {
			return &SchemaError{Type: t, Column: col.ColumnName, Err: ErrNullableKey}
		}
	}

	return nil
}
