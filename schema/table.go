package schema

import (
	"reflect"
	"strings"

	"github.com/Konsultn-Engineering/microrm/dialect"
)

// Table names the table a record type maps to.
type Table struct {
	Name   string
	Schema string

	dialect dialect.Dialect
}

// QualifiedName is the quoted, schema-qualified table name, e.g. [dbo].[Employees].
func (t Table) QualifiedName() string {
	d := t.dialect
	if d == nil {
		d = dialect.Default
	}
	return d.QualifiedName(t.Schema, t.Name)
}

// Mapping is the complete, validated-on-demand mapping of one struct type.
type Mapping struct {
	Type    reflect.Type
	Table   Table
	Columns []*Column

	id         uint64
	byProperty map[string]*Column
	byColumn   map[string]*Column
	keys       []*Column
	insert     []*Column
	update     []*Column
	generated  *Column
}

func newMapping(t reflect.Type, table Table, columns []*Column, id uint64) *Mapping {
	m := &Mapping{
		Type:       t,
		Table:      table,
		Columns:    columns,
		id:         id,
		byProperty: make(map[string]*Column, len(columns)),
		byColumn:   make(map[string]*Column, len(columns)),
	}

	for _, col := range columns {
		m.byProperty[col.PropertyName] = col
		m.byColumn[strings.ToLower(col.ColumnName)] = col

		if col.IsGenerated && m.generated == nil {
			m.generated = col
		}
		if col.IsKey {
			m.keys = append(m.keys, col)
		}
		if !col.IsGenerated {
			m.insert = append(m.insert, col)
			if !col.IsKey {
				m.update = append(m.update, col)
			}
		}
	}

	return m
}

// ID identifies this version of the mapping. Reconfiguring a type yields a
// new ID, so caches keyed by it never serve a stale shape.
func (m *Mapping) ID() uint64 { return m.id }

// Column looks a column up by Go field name.
func (m *Mapping) Column(property string) (*Column, bool) {
	c, ok := m.byProperty[property]
	return c, ok
}

// ColumnByName looks a column up by column name, ignoring case.
func (m *Mapping) ColumnByName(name string) (*Column, bool) {
	c, ok := m.byColumn[strings.ToLower(name)]
	return c, ok
}

func (m *Mapping) KeyColumns() []*Column { return m.keys }

// GeneratedColumn returns the server-generated column, or nil.
func (m *Mapping) GeneratedColumn() *Column { return m.generated }

// InsertColumns are all columns the server does not generate.
func (m *Mapping) InsertColumns() []*Column { return m.insert }

// UpdateColumns are the non-key, non-generated columns.
func (m *Mapping) UpdateColumns() []*Column { return m.update }
