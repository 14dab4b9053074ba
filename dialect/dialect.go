package dialect

import "reflect"

// Dialect renders identifiers, parameters and type names for generated SQL.
// SQLServer is the only implementation.
type Dialect interface {
	QuoteIdentifier(name string) string
	QualifiedName(schema, name string) string
	ParameterName(property string) string
	IdentityClause() string
	TypeFor(native reflect.Type) (DbType, bool)
	ColumnType(t DbType, length int) string
	Arg(t DbType, size int, value any) any
}

// Default is the dialect used when none is configured.
var Default Dialect = SQLServer{}
