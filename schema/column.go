package schema

import (
	"reflect"
	"unsafe"

	"github.com/Konsultn-Engineering/microrm/dialect"
)

// DefaultStringLength bounds text columns without an explicit length.
const DefaultStringLength = 255

// Column is the mapping of one struct field to one table column. A Column is
// immutable once its Mapping is published; fluent configuration replaces it.
type Column struct {
	Field        reflect.StructField
	PropertyName string
	ColumnName   string
	NativeType   reflect.Type
	DbType       dialect.DbType
	IsNullable   bool
	IsKey        bool
	IsGenerated  bool
	Length       int
	Generator    string

	acc     accessor
	dialect dialect.Dialect
}

// QualifiedName is the quoted column identifier, e.g. [FullName].
func (c *Column) QualifiedName() string {
	return c.dialect.QuoteIdentifier(c.ColumnName)
}

// ParameterName is the placeholder bound to this column, e.g. @FullName.
func (c *Column) ParameterName() string {
	return c.dialect.ParameterName(c.PropertyName)
}

// IsText reports whether the column stores character data.
func (c *Column) IsText() bool {
	return c.NativeType.Kind() == reflect.String
}

// GetValue reads the column from record, a non-nil pointer to the mapped
// struct. nil means NULL.
func (c *Column) GetValue(record any) any {
	return c.acc.get(recordPointer(record))
}

// SetValue assigns value to the column of record, converting it to the
// native type when it is not directly assignable.
func (c *Column) SetValue(record any, value any) error {
	return c.assign(recordPointer(record), value)
}

// IsZero reports whether the column of record holds NULL or its zero value.
func (c *Column) IsZero(record any) bool {
	v := c.acc.get(recordPointer(record))
	return v == nil || reflect.ValueOf(v).IsZero()
}

func (c *Column) assign(base unsafe.Pointer, value any) error {
	if c.acc.set(base, value) {
		return nil
	}

	converted, err := Convert(value, c.NativeType)
	if err == nil && c.acc.set(base, converted) {
		return nil
	}
	if err == nil {
		err = ErrUnsupportedConversion
	}
	return &ConversionError{
		Column: c.ColumnName,
		From:   reflect.TypeOf(value),
		To:     c.NativeType,
		Err:    err,
	}
}

func (c *Column) clone() *Column {
	cp := *c
	return &cp
}
