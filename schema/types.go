package schema

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

// TableNamer lets a record type override its table name.
type TableNamer interface {
	TableName() string
}

// SchemaNamer lets a record type place its table in a database schema.
type SchemaNamer interface {
	TableSchema() string
}

var (
	uuidType  = reflect.TypeOf(uuid.UUID{})
	timeType  = reflect.TypeOf(time.Time{})
	bytesType = reflect.TypeOf([]byte(nil))
)

// kindTypes reduces named types (enums) to the basic type of their kind.
var kindTypes = map[reflect.Kind]reflect.Type{
	reflect.String:  reflect.TypeOf(""),
	reflect.Bool:    reflect.TypeOf(false),
	reflect.Int:     reflect.TypeOf(int(0)),
	reflect.Int8:    reflect.TypeOf(int8(0)),
	reflect.Int16:   reflect.TypeOf(int16(0)),
	reflect.Int32:   reflect.TypeOf(int32(0)),
	reflect.Int64:   reflect.TypeOf(int64(0)),
	reflect.Uint:    reflect.TypeOf(uint(0)),
	reflect.Uint8:   reflect.TypeOf(uint8(0)),
	reflect.Uint16:  reflect.TypeOf(uint16(0)),
	reflect.Uint32:  reflect.TypeOf(uint32(0)),
	reflect.Uint64:  reflect.TypeOf(uint64(0)),
	reflect.Float32: reflect.TypeOf(float32(0)),
	reflect.Float64: reflect.TypeOf(float64(0)),
}

// nativeType classifies a field type. It unwraps one pointer level (the
// nullable wrapper) and reduces named scalar types to their kind. ok is false
// for types that cannot be stored in a single column.
func nativeType(t reflect.Type) (native reflect.Type, nullable bool, ok bool) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
		nullable = true
		if t.Kind() == reflect.Ptr {
			return nil, false, false
		}
	}

	switch t {
	case uuidType, timeType:
		return t, nullable, true
	case bytesType:
		return t, true, true
	}

	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return bytesType, true, true
	}

	native, ok = kindTypes[t.Kind()]
	if !ok {
		return nil, false, false
	}
	if native.Kind() == reflect.String {
		nullable = true
	}
	return native, nullable, true
}

// TypeOf returns the reflect.Type of T, for use with Registry lookups.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
