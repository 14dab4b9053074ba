package command

import (
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/microrm/cache"
	"github.com/Konsultn-Engineering/microrm/schema"
)

// Kind names a generated statement.
type Kind int

const (
	SelectAll Kind = iota
	SelectByKey
	Insert
	Update
	Delete
	Count
	CreateTable
	TableExists
	DropTable
)

var kindNames = [...]string{
	SelectAll:   "select_all",
	SelectByKey: "select_by_key",
	Insert:      "insert",
	Update:      "update",
	Delete:      "delete",
	Count:       "count",
	CreateTable: "create_table",
	TableExists: "table_exists",
	DropTable:   "drop_table",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Parameter names used by the TableExists statement.
const (
	SchemaParameter    = "@Schema"
	TableNameParameter = "@TableName"
)

// DefaultSchema is bound to @Schema when a table has no explicit schema.
const DefaultSchema = "dbo"

type textKey struct {
	kind    Kind
	mapping *schema.Mapping
}

// Generator renders SQL text from mappings. Texts are cached per statement
// kind and mapping version; a reconfigured type gets fresh texts.
type Generator struct {
	registry *schema.Registry
	texts    *cache.Memo[textKey, string]
	logger   *zap.Logger
}

type GeneratorOption func(*Generator)

func WithGeneratorLogger(l *zap.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

func NewGenerator(registry *schema.Registry, opts ...GeneratorOption) *Generator {
	g := &Generator{
		registry: registry,
		texts:    cache.NewMemo[textKey, string](64),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Registry returns the registry mappings are resolved from.
func (g *Generator) Registry() *schema.Registry { return g.registry }

// Text returns the cached text of kind for m.
func (g *Generator) Text(kind Kind, m *schema.Mapping) string {
	text, _ := g.texts.GetOrCompute(textKey{kind: kind, mapping: m}, func() (string, error) {
		text := g.render(kind, m)
		g.logger.Debug("generated command text",
			zap.Stringer("kind", kind),
			zap.String("type", m.Type.String()),
			zap.String("sql", text))
		return text, nil
	})
	return text
}

func (g *Generator) textFor(kind Kind, t reflect.Type) (string, error) {
	m, err := g.registry.Mapping(t)
	if err != nil {
		return "", err
	}
	return g.Text(kind, m), nil
}

// SelectAllText returns SELECT <columns> FROM <table>.
func (g *Generator) SelectAllText(t reflect.Type) (string, error) {
	return g.textFor(SelectAll, t)
}

// SelectByKeyText returns SELECT <columns> FROM <table> WHERE <key = @Key AND ...>.
func (g *Generator) SelectByKeyText(t reflect.Type) (string, error) {
	return g.textFor(SelectByKey, t)
}

// InsertText returns the INSERT statement over all non-generated columns,
// followed by the identity query when the type has a generated column.
func (g *Generator) InsertText(t reflect.Type) (string, error) {
	return g.textFor(Insert, t)
}

// UpdateText returns UPDATE <table> SET <non-key columns> WHERE <keys>.
func (g *Generator) UpdateText(t reflect.Type) (string, error) {
	return g.textFor(Update, t)
}

func (g *Generator) DeleteText(t reflect.Type) (string, error) {
	return g.textFor(Delete, t)
}

func (g *Generator) CountText(t reflect.Type) (string, error) {
	return g.textFor(Count, t)
}

func (g *Generator) CreateTableText(t reflect.Type) (string, error) {
	return g.textFor(CreateTable, t)
}

// TableExistsText queries INFORMATION_SCHEMA with the @Schema and @TableName
// parameters.
func (g *Generator) TableExistsText(t reflect.Type) (string, error) {
	return g.textFor(TableExists, t)
}

func (g *Generator) DropTableText(t reflect.Type) (string, error) {
	return g.textFor(DropTable, t)
}

func (g *Generator) render(kind Kind, m *schema.Mapping) string {
	table := m.Table.QualifiedName()

	switch kind {
	case SelectAll:
		return "SELECT " + columnList(m.Columns) + " FROM " + table
	case SelectByKey:
		return "SELECT " + columnList(m.Columns) + " FROM " + table +
			" WHERE " + assignments(m.KeyColumns(), " AND ")
	case Insert:
		cols := m.InsertColumns()
		params := make([]string, len(cols))
		for i, c := range cols {
			params[i] = c.ParameterName()
		}
		text := "INSERT INTO " + table + " (" + columnList(cols) + ") VALUES (" + strings.Join(params, ", ") + ")"
		if m.GeneratedColumn() != nil {
			text += "; " + g.registry.Dialect().IdentityClause()
		}
		return text
	case Update:
		return "UPDATE " + table + " SET " + assignments(m.UpdateColumns(), ", ") +
			" WHERE " + assignments(m.KeyColumns(), " AND ")
	case Delete:
		return "DELETE FROM " + table + " WHERE " + assignments(m.KeyColumns(), " AND ")
	case Count:
		return "SELECT COUNT(*) FROM " + table
	case CreateTable:
		return g.renderCreateTable(m)
	case TableExists:
		return "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = " +
			SchemaParameter + " AND TABLE_NAME = " + TableNameParameter
	case DropTable:
		return "DROP TABLE " + table
	default:
		return ""
	}
}

// renderCreateTable lists key columns first, then the rest in declaration
// order, and names the primary key constraint after the table.
func (g *Generator) renderCreateTable(m *schema.Mapping) string {
	d := g.registry.Dialect()
	defs := make([]string, 0, len(m.Columns)+1)

	for _, c := range m.KeyColumns() {
		suffix := "NOT NULL"
		if c.IsGenerated {
			suffix = "IDENTITY(1,1)"
		}
		defs = append(defs, c.QualifiedName()+" "+d.ColumnType(c.DbType, c.Length)+" "+suffix)
	}
	for _, c := range m.Columns {
		if c.IsKey {
			continue
		}
		suffix := "NOT NULL"
		if c.IsNullable {
			suffix = "NULL"
		}
		defs = append(defs, c.QualifiedName()+" "+d.ColumnType(c.DbType, c.Length)+" "+suffix)
	}

	constraint := "PK_" + strings.ReplaceAll(m.Table.Name, " ", "_")
	defs = append(defs, "CONSTRAINT "+d.QuoteIdentifier(constraint)+" PRIMARY KEY ("+columnList(m.KeyColumns())+")")

	return "CREATE TABLE " + m.Table.QualifiedName() + " (" + strings.Join(defs, ", ") + ")"
}

func columnList(cols []*schema.Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.QualifiedName()
	}
	return strings.Join(names, ", ")
}

func assignments(cols []*schema.Column, sep string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c.QualifiedName() + " = " + c.ParameterName()
	}
	return strings.Join(parts, sep)
}
