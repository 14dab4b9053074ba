package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Konsultn-Engineering/microrm/dialect"
)

var (
	ErrUnsupportedConversion = errors.New("unsupported conversion")
	ErrOverflow              = errors.New("value out of range")
)

// ConversionError reports a row value that could not be coerced to the
// native type of its column.
type ConversionError struct {
	Column string
	From   reflect.Type
	To     reflect.Type
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("unable to convert '%v' to '%v' for column '%s': %v", e.From, e.To, e.Column, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.9999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Convert coerces a driver value to target, one of the native column types.
// nil converts to the zero value of target.
func Convert(value any, target reflect.Type) (any, error) {
	if value == nil {
		return reflect.Zero(target).Interface(), nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Zero(target).Interface(), nil
		}
		rv = rv.Elem()
		value = rv.Interface()
	}
	if rv.Type() == target {
		return value, nil
	}

	switch target {
	case uuidType:
		return toUUID(rv)
	case timeType:
		return toTime(rv)
	case bytesType:
		switch v := value.(type) {
		case string:
			return []byte(v), nil
		case uuid.UUID:
			return v[:], nil
		}
		return nil, ErrUnsupportedConversion
	}

	switch target.Kind() {
	case reflect.String:
		return toString(rv)
	case reflect.Bool:
		return toBool(rv)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return toInt(rv, target)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return toUint(rv, target)
	case reflect.Float32, reflect.Float64:
		return toFloat(rv, target)
	default:
		return nil, ErrUnsupportedConversion
	}
}

func textOf(rv reflect.Value) (string, bool) {
	switch {
	case rv.Kind() == reflect.String:
		return rv.String(), true
	case rv.Type() == bytesType:
		return string(rv.Bytes()), true
	default:
		return "", false
	}
}

func toString(rv reflect.Value) (any, error) {
	if s, ok := textOf(rv); ok {
		return s, nil
	}

	switch v := rv.Interface().(type) {
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return v.String(), nil
	}

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	}
	return nil, ErrUnsupportedConversion
}

func toBool(rv reflect.Value) (any, error) {
	if s, ok := textOf(rv); ok {
		return strconv.ParseBool(strings.TrimSpace(s))
	}
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0, nil
	}
	return nil, ErrUnsupportedConversion
}

func toInt(rv reflect.Value, target reflect.Type) (any, error) {
	out := reflect.New(target).Elem()

	var n int64
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n = rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > 1<<63-1 {
			return nil, ErrOverflow
		}
		n = int64(u)
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != float64(int64(f)) {
			return nil, fmt.Errorf("%w: %v is not integral", ErrUnsupportedConversion, f)
		}
		n = int64(f)
	case reflect.Bool:
		if rv.Bool() {
			n = 1
		}
	default:
		s, ok := textOf(rv)
		if !ok {
			return nil, ErrUnsupportedConversion
		}
		parsed, err := parseIntText(s)
		if err != nil {
			return nil, err
		}
		n = parsed
	}

	if out.OverflowInt(n) {
		return nil, ErrOverflow
	}
	out.SetInt(n)
	return out.Interface(), nil
}

// parseIntText accepts decimal text such as the "5" or "5.0" drivers return
// for numeric identity values.
func parseIntText(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("%w: %s is not integral", ErrUnsupportedConversion, s)
	}
	return int64(f), nil
}

func toUint(rv reflect.Value, target reflect.Type) (any, error) {
	signed, err := toInt(rv, reflect.TypeOf(int64(0)))
	if err != nil {
		if rv.Kind() >= reflect.Uint && rv.Kind() <= reflect.Uint64 {
			out := reflect.New(target).Elem()
			if out.OverflowUint(rv.Uint()) {
				return nil, ErrOverflow
			}
			out.SetUint(rv.Uint())
			return out.Interface(), nil
		}
		return nil, err
	}

	n := signed.(int64)
	if n < 0 {
		return nil, ErrOverflow
	}
	out := reflect.New(target).Elem()
	if out.OverflowUint(uint64(n)) {
		return nil, ErrOverflow
	}
	out.SetUint(uint64(n))
	return out.Interface(), nil
}

func toFloat(rv reflect.Value, target reflect.Type) (any, error) {
	out := reflect.New(target).Elem()

	var f float64
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f = float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f = float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		f = rv.Float()
	default:
		s, ok := textOf(rv)
		if !ok {
			return nil, ErrUnsupportedConversion
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, err
		}
		f = parsed
	}

	if out.OverflowFloat(f) {
		return nil, ErrOverflow
	}
	out.SetFloat(f)
	return out.Interface(), nil
}

func toUUID(rv reflect.Value) (any, error) {
	if rv.Kind() == reflect.String {
		return uuid.Parse(rv.String())
	}
	if rv.Type() == bytesType {
		b := rv.Bytes()
		if len(b) == 16 {
			return dialect.DecodeUniqueIdentifier(b)
		}
		return uuid.ParseBytes(b)
	}
	if rv.Kind() == reflect.Array && rv.Len() == 16 && rv.Type().Elem().Kind() == reflect.Uint8 {
		var u uuid.UUID
		reflect.Copy(reflect.ValueOf(u[:]), rv)
		return u, nil
	}
	return nil, ErrUnsupportedConversion
}

func toTime(rv reflect.Value) (any, error) {
	s, ok := textOf(rv)
	if !ok {
		return nil, ErrUnsupportedConversion
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: unrecognised time %q", ErrUnsupportedConversion, s)
}
