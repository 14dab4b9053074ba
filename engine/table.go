package engine

import (
	"context"
	"reflect"

	"github.com/Konsultn-Engineering/microrm/command"
	"github.com/Konsultn-Engineering/microrm/schema"
)

// Table is a typed view of one mapped struct type. T is validated when the
// Table is created; every call resolves the registry's current mapping, so
// a later Configure for T is observed.
type Table[T any] struct {
	engine *Engine
	typ    reflect.Type
}

// For returns the typed table of T, failing when T is not a valid mapped
// struct.
func For[T any](e *Engine) (*Table[T], error) {
	typ := reflect.TypeFor[T]()
	if _, err := e.validMapping(typ); err != nil {
		return nil, err
	}
	return &Table[T]{engine: e, typ: typ}, nil
}

// Mapping returns the current validated mapping of T.
func (t *Table[T]) Mapping() (*schema.Mapping, error) {
	return t.engine.validMapping(t.typ)
}

func (t *Table[T]) Columns() ([]*schema.Column, error) {
	m, err := t.Mapping()
	if err != nil {
		return nil, err
	}
	return m.Columns, nil
}

func (t *Table[T]) Exists(ctx context.Context) (bool, error) {
	return t.engine.TableExists(ctx, t.typ)
}

func (t *Table[T]) Create(ctx context.Context) error {
	return t.engine.CreateTable(ctx, t.typ)
}

func (t *Table[T]) Drop(ctx context.Context) error {
	return t.engine.DropTable(ctx, t.typ)
}

func (t *Table[T]) SelectAll(ctx context.Context) ([]T, error) {
	var out []T
	err := t.engine.SelectAll(ctx, &out)
	return out, err
}

func (t *Table[T]) SelectSingle(ctx context.Context, record *T) (bool, error) {
	return t.engine.SelectSingle(ctx, record)
}

// SelectMany runs cmd and returns the materialized rows.
func (t *Table[T]) SelectMany(ctx context.Context, cmd *command.Command) ([]T, error) {
	var out []T
	err := t.engine.SelectMany(ctx, cmd, &out)
	return out, err
}

// Retrieve runs query with args and returns the materialized rows.
func (t *Table[T]) Retrieve(ctx context.Context, query string, args ...any) ([]T, error) {
	var out []T
	err := t.engine.Retrieve(ctx, &out, query, args...)
	return out, err
}

func (t *Table[T]) Insert(ctx context.Context, record *T, readback bool) (int, error) {
	return t.engine.Insert(ctx, record, readback)
}

func (t *Table[T]) InsertMany(ctx context.Context, records []*T, readback bool) (int, error) {
	return t.engine.InsertMany(ctx, anySlice(records), readback)
}

func (t *Table[T]) Update(ctx context.Context, record *T) (int, error) {
	return t.engine.Update(ctx, record)
}

func (t *Table[T]) UpdateMany(ctx context.Context, records []*T) (int, error) {
	return t.engine.UpdateMany(ctx, anySlice(records))
}

func (t *Table[T]) Delete(ctx context.Context, record *T) (int, error) {
	return t.engine.Delete(ctx, record)
}

func (t *Table[T]) CountAll(ctx context.Context) (int64, error) {
	return t.engine.CountAll(ctx, t.typ)
}

func anySlice[T any](records []*T) []any {
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}
