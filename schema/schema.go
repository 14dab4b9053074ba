package schema

import (
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/microrm/cache"
	"github.com/Konsultn-Engineering/microrm/dialect"
)

var ErrNotStruct = errors.New("record type must be a struct")

// Registry discovers and caches the mapping of record types. One Registry is
// meant to be created per process and shared by every component that needs
// mappings; it is safe for concurrent use.
type Registry struct {
	parser     *TagParser
	naming     NamingStrategy
	dialect    dialect.Dialect
	generators *GeneratorRegistry
	logger     *zap.Logger
	onDiscover func(reflect.Type)

	mappings      *cache.Memo[reflect.Type, *Mapping]
	plans         *cache.LRU[uint64, *plan]
	planCacheSize int
	generation    atomic.Uint64
}

type Option func(*Registry)

// WithNamingStrategy sets how default table and column names are derived.
func WithNamingStrategy(n NamingStrategy) Option {
	return func(r *Registry) { r.naming = n }
}

// WithTagName reads mapping tags from a key other than "db".
func WithTagName(name string) Option {
	return func(r *Registry) { r.parser = NewTagParser(name) }
}

func WithDialect(d dialect.Dialect) Option {
	return func(r *Registry) { r.dialect = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithDiscoveryHook is called every time a type is discovered (not on cache
// hits).
func WithDiscoveryHook(fn func(reflect.Type)) Option {
	return func(r *Registry) { r.onDiscover = fn }
}

// WithPlanCacheSize bounds the number of cached result-shape plans.
func WithPlanCacheSize(n int) Option {
	return func(r *Registry) { r.planCacheSize = n }
}

// WithGenerator registers a client-side key generator under name.
func WithGenerator(name string, g IDGenerator) Option {
	return func(r *Registry) { r.generators.Register(name, g) }
}

func New(opts ...Option) *Registry {
	r := &Registry{
		parser:        NewTagParser(DefaultTagName),
		naming:        DefaultNamingStrategy(),
		dialect:       dialect.Default,
		generators:    NewGeneratorRegistry(),
		logger:        zap.NewNop(),
		mappings:      cache.NewMemo[reflect.Type, *Mapping](64),
		planCacheSize: 512,
	}
	for _, opt := range opts {
		opt(r)
	}

	// NewLRU only fails for non-positive sizes, which it normalizes.
	r.plans, _ = cache.NewLRU[uint64, *plan](r.planCacheSize, nil)
	return r
}

// Dialect returns the SQL dialect mappings are rendered for.
func (r *Registry) Dialect() dialect.Dialect { return r.dialect }

// Mapping returns the mapping of t, discovering it on first use. t may be the
// struct type or a pointer to it.
func (r *Registry) Mapping(t reflect.Type) (*Mapping, error) {
	t, err := structType(t)
	if err != nil {
		return nil, err
	}
	return r.mappings.GetOrCompute(t, func() (*Mapping, error) {
		return r.discover(t)
	})
}

// MappingOf returns the mapping of the dynamic type of record.
func (r *Registry) MappingOf(record any) (*Mapping, error) {
	return r.Mapping(reflect.TypeOf(record))
}

// Columns returns the mapped columns of t in field declaration order.
func (r *Registry) Columns(t reflect.Type) ([]*Column, error) {
	m, err := r.Mapping(t)
	if err != nil {
		return nil, err
	}
	return m.Columns, nil
}

// Table returns the table t maps to.
func (r *Registry) Table(t reflect.Type) (Table, error) {
	m, err := r.Mapping(t)
	if err != nil {
		return Table{}, err
	}
	return m.Table, nil
}

func structType(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, ErrNotStruct
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrNotStruct, t)
	}
	return t, nil
}

func (r *Registry) discover(t reflect.Type) (*Mapping, error) {
	if r.onDiscover != nil {
		r.onDiscover(t)
	}

	table := Table{Name: r.naming.TableName(t.Name()), dialect: r.dialect}
	instance := reflect.New(t).Interface()
	if namer, ok := instance.(TableNamer); ok {
		table.Name = namer.TableName()
	}
	if namer, ok := instance.(SchemaNamer); ok {
		table.Schema = namer.TableSchema()
	}

	fields := r.mappedFields(t)
	columns := make([]*Column, 0, len(fields))
	for _, field := range fields {
		tag, err := r.parser.ParseTag(field.Tag)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name(), field.Name, err)
		}
		if tag.Skip {
			continue
		}

		native, nullable, ok := nativeType(field.Type)
		if !ok {
			r.logger.Debug("field not mapped",
				zap.String("type", t.String()),
				zap.String("field", field.Name),
				zap.Stringer("field_type", field.Type))
			continue
		}

		columns = append(columns, r.newColumn(field, tag, native, nullable))
	}

	m := newMapping(t, table, columns, r.generation.Add(1))
	r.logger.Debug("discovered mapping",
		zap.String("type", t.String()),
		zap.String("table", table.QualifiedName()),
		zap.Int("columns", len(columns)))

	return m, nil
}

type promotedField struct {
	field reflect.StructField
	depth int
}

// mappedFields lists the exported fields of t in declaration order, with the
// fields of embedded structs promoted in place. Offsets and indexes are
// relative to t. A promoted field hidden by a shallower field of the same
// name is dropped, as are names that are ambiguous at one depth.
func (r *Registry) mappedFields(t reflect.Type) []reflect.StructField {
	var all []promotedField
	r.walkFields(t, t, nil, 0, 0, &all)

	shallowest := make(map[string]int, len(all))
	count := make(map[string]int, len(all))
	for _, f := range all {
		d, seen := shallowest[f.field.Name]
		switch {
		case !seen || f.depth < d:
			shallowest[f.field.Name] = f.depth
			count[f.field.Name] = 1
		case f.depth == d:
			count[f.field.Name]++
		}
	}

	fields := make([]reflect.StructField, 0, len(all))
	for _, f := range all {
		if f.depth != shallowest[f.field.Name] {
			continue
		}
		if count[f.field.Name] > 1 {
			r.logger.Debug("ambiguous promoted field not mapped",
				zap.String("type", t.String()),
				zap.String("field", f.field.Name))
			continue
		}
		fields = append(fields, f.field)
	}
	return fields
}

func (r *Registry) walkFields(root, t reflect.Type, index []int, offset uintptr, depth int, out *[]promotedField) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		field.Index = append(append([]int(nil), index...), i)
		field.Offset += offset

		if field.Anonymous {
			switch {
			case field.Type.Kind() == reflect.Struct:
				if field.Tag.Get(r.parser.TagName()) == "-" {
					continue
				}
				r.walkFields(root, field.Type, field.Index, field.Offset, depth+1, out)
			case field.Type.Kind() == reflect.Ptr && field.Type.Elem().Kind() == reflect.Struct:
				r.logger.Debug("embedded pointer not mapped",
					zap.String("type", root.String()),
					zap.String("field", field.Name))
			}
			continue
		}
		if !field.IsExported() {
			continue
		}
		*out = append(*out, promotedField{field: field, depth: depth})
	}
}

func (r *Registry) newColumn(field reflect.StructField, tag *ParsedTag, native reflect.Type, nullable bool) *Column {
	col := &Column{
		Field:        field,
		PropertyName: field.Name,
		ColumnName:   tag.ColumnName,
		NativeType:   native,
		IsNullable:   nullable,
		IsKey:        tag.Key,
		IsGenerated:  tag.Generated,
		Length:       DefaultStringLength,
		Generator:    tag.Generator,
		acc:          compileAccessor(field, native),
		dialect:      r.dialect,
	}

	if col.ColumnName == "" {
		col.ColumnName = r.naming.ColumnName(field.Name)
	}
	if tag.Length != nil {
		col.Length = *tag.Length
	}
	if tag.Required && col.IsText() {
		col.IsNullable = false
	}
	col.DbType, _ = r.dialect.TypeFor(native)

	return col
}
