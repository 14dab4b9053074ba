package schema

import (
	"errors"
	"fmt"
	"reflect"
)

var ErrUnknownProperty = errors.New("unknown property")

// MappingBuilder edits a copy of a discovered mapping. The copy is published
// when the Configure callback returns without error.
type MappingBuilder struct {
	table   Table
	columns []*Column
	errs    []error
}

// ColumnBuilder edits one column of a MappingBuilder.
type ColumnBuilder struct {
	mb  *MappingBuilder
	col *Column
}

// Configure applies programmatic mapping configuration to t, as an
// alternative or complement to struct tags:
//
//	reg.Configure(schema.TypeOf[Employee](), func(m *schema.MappingBuilder) {
//		m.ToTable("Staff", "hr")
//		m.Column("Id").IsGeneratedKeyColumn()
//		m.Column("Notes").NotMapped()
//	})
//
// Lookups made after Configure returns observe the new mapping. configure
// runs while the registry holds the mapping cache's write lock, so it must
// not call back into r (Mapping, Columns, Configure and the like deadlock).
func (r *Registry) Configure(t reflect.Type, configure func(*MappingBuilder)) error {
	t, err := structType(t)
	if err != nil {
		return err
	}

	_, err = r.mappings.Replace(t, func(current *Mapping, ok bool) (*Mapping, error) {
		if !ok {
			discovered, err := r.discover(t)
			if err != nil {
				return nil, err
			}
			current = discovered
		}

		mb := &MappingBuilder{
			table:   current.Table,
			columns: make([]*Column, len(current.Columns)),
		}
		for i, col := range current.Columns {
			mb.columns[i] = col.clone()
		}

		configure(mb)
		if err := errors.Join(mb.errs...); err != nil {
			return nil, err
		}

		return newMapping(t, mb.table, mb.liveColumns(), r.generation.Add(1)), nil
	})
	return err
}

// ConfigureType is Configure for the type parameter T.
func ConfigureType[T any](r *Registry, configure func(*MappingBuilder)) error {
	return r.Configure(TypeOf[T](), configure)
}

// ToTable maps the type to name, optionally inside a schema.
func (b *MappingBuilder) ToTable(name string, schemaName ...string) *MappingBuilder {
	b.table.Name = name
	b.table.Schema = ""
	if len(schemaName) > 0 {
		b.table.Schema = schemaName[0]
	}
	return b
}

// Column selects the column mapped from the given Go field name.
func (b *MappingBuilder) Column(property string) *ColumnBuilder {
	for _, col := range b.columns {
		if col != nil && col.PropertyName == property {
			return &ColumnBuilder{mb: b, col: col}
		}
	}
	b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrUnknownProperty, property))
	return &ColumnBuilder{mb: b}
}

func (b *MappingBuilder) liveColumns() []*Column {
	cols := make([]*Column, 0, len(b.columns))
	for _, col := range b.columns {
		if col != nil {
			cols = append(cols, col)
		}
	}
	return cols
}

func (c *ColumnBuilder) HasColumnName(name string) *ColumnBuilder {
	if c.col != nil {
		c.col.ColumnName = name
	}
	return c
}

// IsKeyColumn marks the column as a key whose value the client supplies.
func (c *ColumnBuilder) IsKeyColumn() *ColumnBuilder {
	if c.col != nil {
		c.col.IsKey = true
		c.col.IsGenerated = false
	}
	return c
}

// IsGeneratedKeyColumn marks the column as a key assigned by the server.
func (c *ColumnBuilder) IsGeneratedKeyColumn() *ColumnBuilder {
	if c.col != nil {
		c.col.IsKey = true
		c.col.IsGenerated = true
	}
	return c
}

func (c *ColumnBuilder) IsNullable() *ColumnBuilder {
	if c.col != nil {
		c.col.IsNullable = true
	}
	return c
}

// IsRequired makes the column non-nullable.
func (c *ColumnBuilder) IsRequired() *ColumnBuilder {
	if c.col != nil {
		c.col.IsNullable = false
	}
	return c
}

func (c *ColumnBuilder) HasStringLength(n int) *ColumnBuilder {
	if c.col != nil {
		c.col.Length = n
	}
	return c
}

// HasGenerator assigns a client-side key generator by name.
func (c *ColumnBuilder) HasGenerator(name string) *ColumnBuilder {
	if c.col != nil {
		c.col.Generator = name
	}
	return c
}

// NotMapped removes the column from the mapping.
func (c *ColumnBuilder) NotMapped() *ColumnBuilder {
	if c.col == nil {
		return c
	}
	for i, col := range c.mb.columns {
		if col == c.col {
			c.mb.columns[i] = nil
		}
	}
	c.col = nil
	return c
}
