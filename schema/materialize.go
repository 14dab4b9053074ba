package schema

import (
	"fmt"
	"strconv"

	"github.com/Konsultn-Engineering/microrm/cache"
)

// Row is one result row as returned by the driver: column names and their
// values, positionally aligned.
type Row struct {
	Columns []string
	Values  []any
}

// plan maps result positions to mapped columns for one result shape. nil
// entries are result columns the record does not map.
type plan struct {
	columns []*Column
}

// planFor resolves the result columns of a query against m. Plans are cached per
// (mapping version, column list) so repeated queries skip the lookups.
func (r *Registry) planFor(m *Mapping, columns []string) *plan {
	key := cache.ShapeKey(m.Type.String()+"#"+strconv.FormatUint(m.id, 10), columns)
	return r.plans.GetOrAdd(key, func() *plan {
		p := &plan{columns: make([]*Column, len(columns))}
		for i, name := range columns {
			if col, ok := m.ColumnByName(name); ok {
				p.columns[i] = col
			}
		}
		return p
	})
}

// Materialize copies row into dest, a non-nil pointer to m's type. Mapped
// columns missing from the row are left untouched; NULL becomes the zero
// value. A value that cannot be converted yields a *ConversionError.
func (r *Registry) Materialize(m *Mapping, row Row, dest any) error {
	if len(row.Columns) != len(row.Values) {
		return fmt.Errorf("row has %d columns but %d values", len(row.Columns), len(row.Values))
	}

	p := r.planFor(m, row.Columns)
	base := recordPointer(dest)
	for i, col := range p.columns {
		if col == nil {
			continue
		}
		if err := col.assign(base, row.Values[i]); err != nil {
			return err
		}
	}
	return nil
}
