package schema

import (
	"reflect"
	"sync"
	"time"
	"unsafe"

	"github.com/google/uuid"
)

// getterFunc reads a field relative to the struct base pointer. Nullable
// fields yield nil or the dereferenced value; enum fields yield the native type.
type getterFunc func(base unsafe.Pointer) any

// setterFunc writes a field relative to the struct base pointer. nil stores
// the zero value. It reports false when value has neither the field type nor
// its native type, so callers can fall back to conversion.
type setterFunc func(base unsafe.Pointer, value any) bool

type accessor struct {
	get getterFunc
	set setterFunc
}

// accessorCreators maps a field type to a factory taking the field offset.
var accessorCreators = sync.Map{}

func registerAccessor[T any]() {
	var zero T
	accessorCreators.Store(reflect.TypeOf(zero), func(offset uintptr) accessor {
		return accessor{
			get: func(base unsafe.Pointer) any {
				return *(*T)(unsafe.Add(base, offset))
			},
			set: func(base unsafe.Pointer, value any) bool {
				fieldPtr := (*T)(unsafe.Add(base, offset))
				if value == nil {
					*fieldPtr = zero
					return true
				}
				v, ok := value.(T)
				if !ok {
					return false
				}
				*fieldPtr = v
				return true
			},
		}
	})
}

func registerNullableAccessor[T any]() {
	accessorCreators.Store(reflect.TypeOf((*T)(nil)), func(offset uintptr) accessor {
		return accessor{
			get: func(base unsafe.Pointer) any {
				p := *(**T)(unsafe.Add(base, offset))
				if p == nil {
					return nil
				}
				return *p
			},
			set: func(base unsafe.Pointer, value any) bool {
				fieldPtr := (**T)(unsafe.Add(base, offset))
				switch v := value.(type) {
				case nil:
					*fieldPtr = nil
				case T:
					*fieldPtr = &v
				case *T:
					*fieldPtr = v
				default:
					return false
				}
				return true
			},
		}
	})
}

func registerScalar[T any]() {
	registerAccessor[T]()
	registerNullableAccessor[T]()
}

func init() {
	registerScalar[string]()
	registerScalar[bool]()
	registerScalar[int]()
	registerScalar[int8]()
	registerScalar[int16]()
	registerScalar[int32]()
	registerScalar[int64]()
	registerScalar[uint]()
	registerScalar[uint8]()
	registerScalar[uint16]()
	registerScalar[uint32]()
	registerScalar[uint64]()
	registerScalar[float32]()
	registerScalar[float64]()
	registerScalar[time.Time]()
	registerScalar[uuid.UUID]()

	// A nil slice reads as NULL.
	accessorCreators.Store(bytesType, func(offset uintptr) accessor {
		return accessor{
			get: func(base unsafe.Pointer) any {
				b := *(*[]byte)(unsafe.Add(base, offset))
				if b == nil {
					return nil
				}
				return b
			},
			set: func(base unsafe.Pointer, value any) bool {
				fieldPtr := (*[]byte)(unsafe.Add(base, offset))
				switch v := value.(type) {
				case nil:
					*fieldPtr = nil
				case []byte:
					*fieldPtr = v
				default:
					return false
				}
				return true
			},
		}
	})
}

// compileAccessor binds a get/set pair to one struct field. Registered types
// use typed pointer access; anything else (enums, named types) goes through
// reflection on the field address.
func compileAccessor(field reflect.StructField, native reflect.Type) accessor {
	if creator, ok := accessorCreators.Load(field.Type); ok {
		return creator.(func(uintptr) accessor)(field.Offset)
	}
	return reflectAccessor(field.Type, native, field.Offset)
}

func reflectAccessor(fieldType, native reflect.Type, offset uintptr) accessor {
	isPtr := fieldType.Kind() == reflect.Ptr
	elemType := fieldType
	if isPtr {
		elemType = fieldType.Elem()
	}

	get := func(base unsafe.Pointer) any {
		v := reflect.NewAt(fieldType, unsafe.Add(base, offset)).Elem()
		if isPtr {
			if v.IsNil() {
				return nil
			}
			v = v.Elem()
		}
		if elemType.Kind() == reflect.Slice && v.IsNil() {
			return nil
		}
		return v.Convert(native).Interface()
	}

	set := func(base unsafe.Pointer, value any) bool {
		target := reflect.NewAt(fieldType, unsafe.Add(base, offset)).Elem()
		if value == nil {
			target.Set(reflect.Zero(fieldType))
			return true
		}

		val := reflect.ValueOf(value)
		switch val.Type() {
		case fieldType:
			target.Set(val)
			return true
		case elemType, native:
		default:
			return false
		}

		elem := val.Convert(elemType)
		if isPtr {
			p := reflect.New(elemType)
			p.Elem().Set(elem)
			target.Set(p)
			return true
		}
		target.Set(elem)
		return true
	}

	return accessor{get: get, set: set}
}

// recordPointer returns the struct base address of a non-nil pointer record.
func recordPointer(record any) unsafe.Pointer {
	return reflect.ValueOf(record).UnsafePointer()
}
