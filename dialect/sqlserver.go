package dialect

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	mssql "github.com/microsoft/go-mssqldb"
)

// DbType is the provider type attached to command parameters and used for DDL.
type DbType int

const (
	NVarChar DbType = iota
	SmallInt
	Int
	BigInt
	TinyInt
	Float
	Real
	Money
	Bit
	UniqueIdentifier
	DateTime
	VarBinary
)

var dbTypeNames = [...]string{
	NVarChar:         "nvarchar",
	SmallInt:         "smallint",
	Int:              "int",
	BigInt:           "bigint",
	TinyInt:          "tinyint",
	Float:            "float",
	Real:             "real",
	Money:            "money",
	Bit:              "bit",
	UniqueIdentifier: "uniqueidentifier",
	DateTime:         "datetime",
	VarBinary:        "varbinary",
}

func (t DbType) String() string {
	if t < 0 || int(t) >= len(dbTypeNames) {
		return fmt.Sprintf("DbType(%d)", int(t))
	}
	return dbTypeNames[t]
}

// HasLength reports whether the type takes a length in DDL and parameter size.
func (t DbType) HasLength() bool {
	return t == NVarChar || t == VarBinary
}

var (
	uuidType  = reflect.TypeOf(uuid.UUID{})
	timeType  = reflect.TypeOf(time.Time{})
	bytesType = reflect.TypeOf([]byte(nil))
)

// SQLServer renders T-SQL: bracket-quoted identifiers, @Name parameters and
// SCOPE_IDENTITY() for identity readback.
type SQLServer struct{}

func (SQLServer) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d SQLServer) QualifiedName(schema, name string) string {
	if strings.TrimSpace(schema) == "" {
		return d.QuoteIdentifier(name)
	}
	return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(name)
}

func (SQLServer) ParameterName(property string) string {
	return "@" + property
}

func (SQLServer) IdentityClause() string {
	return "SELECT SCOPE_IDENTITY()"
}

// TypeFor maps a native Go type to its SQL Server type.
func (SQLServer) TypeFor(native reflect.Type) (DbType, bool) {
	switch native {
	case uuidType:
		return UniqueIdentifier, true
	case timeType:
		return DateTime, true
	case bytesType:
		return VarBinary, true
	}

	switch native.Kind() {
	case reflect.String:
		return NVarChar, true
	case reflect.Int8, reflect.Int16:
		return SmallInt, true
	case reflect.Int32:
		return Int, true
	case reflect.Int, reflect.Int64:
		return BigInt, true
	case reflect.Uint8:
		return TinyInt, true
	case reflect.Uint16:
		return Int, true
	case reflect.Uint32:
		return BigInt, true
	case reflect.Uint, reflect.Uint64:
		return Float, true
	case reflect.Float32:
		return Real, true
	case reflect.Float64:
		return Float, true
	case reflect.Bool:
		return Bit, true
	default:
		return 0, false
	}
}

// ColumnType renders the DDL type name, e.g. "nvarchar(50)".
func (SQLServer) ColumnType(t DbType, length int) string {
	if !t.HasLength() {
		return t.String()
	}
	if length <= 0 || length > 4000 {
		return t.String() + "(max)"
	}
	return fmt.Sprintf("%s(%d)", t, length)
}

// Arg wraps a parameter value so the driver sends it as t rather than the
// type it would infer. Text within 4000 characters stays a plain string,
// which the driver already sends as a sized nvarchar.
func (SQLServer) Arg(t DbType, size int, value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		if t == DateTime {
			return mssql.DateTime1(v)
		}
	case uuid.UUID:
		if t == UniqueIdentifier {
			return mssql.UniqueIdentifier(v)
		}
	case string:
		if t == NVarChar && (size <= 0 || size > 4000) {
			return mssql.NVarCharMax(v)
		}
	case uint:
		if t == Float {
			return float64(v)
		}
	case uint64:
		if t == Float {
			return float64(v)
		}
	}
	return value
}

// DecodeUniqueIdentifier converts the 16-byte wire form of a uniqueidentifier,
// whose first three groups are little-endian, into a uuid.UUID.
func DecodeUniqueIdentifier(b []byte) (uuid.UUID, error) {
	if len(b) != 16 {
		return uuid.Nil, fmt.Errorf("uniqueidentifier must be 16 bytes, got %d", len(b))
	}
	var u uuid.UUID
	copy(u[:], b)
	u[0], u[1], u[2], u[3] = u[3], u[2], u[1], u[0]
	u[4], u[5] = u[5], u[4]
	u[6], u[7] = u[7], u[6]
	return u, nil
}
