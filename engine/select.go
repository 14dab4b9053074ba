package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/microrm/command"
	"github.com/Konsultn-Engineering/microrm/database"
	"github.com/Konsultn-Engineering/microrm/schema"
)

const (
	opSelectAll    = "select_all"
	opSelectSingle = "select_single"
	opSelectMany   = "select_many"
	opRetrieve     = "retrieve"
	opCountAll     = "count_all"
)

// errStopRows ends a scan early once the wanted row was read.
var errStopRows = errors.New("stop reading rows")

// SelectAll loads every row of the table mapped by dest's element type into
// dest, a pointer to a []T or []*T.
func (e *Engine) SelectAll(ctx context.Context, dest any) (err error) {
	started := time.Now()
	n := 0
	defer func() { e.observe(opSelectAll, started, n, err) }()

	target, err := e.sliceTarget(dest)
	if err != nil {
		return err
	}

	cmd := command.New(e.generator.Text(command.SelectAll, target.mapping))
	n, err = e.query(ctx, opSelectAll, e.db, cmd, target)
	return err
}

// SelectSingle loads the row with record's key into record. It reports
// false, leaving record untouched, when no row matches.
func (e *Engine) SelectSingle(ctx context.Context, record any) (found bool, err error) {
	started := time.Now()
	defer func() {
		rows := 0
		if found {
			rows = 1
		}
		e.observe(opSelectSingle, started, rows, err)
	}()

	m, err := e.resolve(record)
	if err != nil {
		return false, err
	}
	found, err = e.selectSingle(ctx, e.db, m, record)
	if found {
		e.metrics.AddRowsRead(opSelectSingle, 1)
	}
	return found, err
}

// SelectMany runs cmd and materializes its rows into dest, a pointer to a
// []T or []*T. Result columns the type does not map are ignored and mapped
// columns missing from the result keep their zero values.
func (e *Engine) SelectMany(ctx context.Context, cmd *command.Command, dest any) (err error) {
	started := time.Now()
	n := 0
	defer func() { e.observe(opSelectMany, started, n, err) }()

	if cmd == nil {
		return ErrNilCommand
	}
	if cmd.Text == "" {
		return ErrEmptyQuery
	}
	target, err := e.sliceTarget(dest)
	if err != nil {
		return err
	}

	n, err = e.query(ctx, opSelectMany, e.db, cmd, target)
	return err
}

// Retrieve runs query with positional or sql.Named args and materializes
// the rows into dest like SelectMany.
func (e *Engine) Retrieve(ctx context.Context, dest any, query string, args ...any) (err error) {
	started := time.Now()
	n := 0
	defer func() { e.observe(opRetrieve, started, n, err) }()

	if query == "" {
		return ErrEmptyQuery
	}
	target, err := e.sliceTarget(dest)
	if err != nil {
		return err
	}

	cctx, cancel := e.commandContext(ctx)
	defer cancel()

	e.logger.Debug("executing query", zap.String("sql", query), zap.Int("args", len(args)))
	rows, err := e.db.QueryContext(cctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	n, err = e.collect(rows, target)
	e.metrics.AddRowsRead(opRetrieve, n)
	return err
}

// CountAll returns the number of rows in the table t maps to.
func (e *Engine) CountAll(ctx context.Context, t reflect.Type) (count int64, err error) {
	started := time.Now()
	defer func() { e.observe(opCountAll, started, 0, err) }()

	m, err := e.validMapping(t)
	if err != nil {
		return 0, err
	}

	cmd := command.New(e.generator.Text(command.Count, m))
	cctx, cancel := e.commandContext(ctx)
	defer cancel()

	e.logCommand(cmd)
	if err := e.db.QueryRowContext(cctx, cmd.Text).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// selectSingle reads the row with record's key through ex. No row is not
// an error.
func (e *Engine) selectSingle(ctx context.Context, ex database.Executor, m *schema.Mapping, record any) (bool, error) {
	cmd := command.New(e.generator.Text(command.SelectByKey, m))
	if err := command.Bind(cmd, m.KeyColumns(), record); err != nil {
		return false, err
	}

	cctx, cancel := e.commandContext(ctx)
	defer cancel()

	e.logCommand(cmd)
	rows, err := ex.QueryContext(cctx, cmd.Text, cmd.Args()...)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	found := false
	_, err = readRows(rows, func(row schema.Row) error {
		if err := e.registry.Materialize(m, row, record); err != nil {
			return err
		}
		found = true
		return errStopRows
	})
	if err != nil && !errors.Is(err, errStopRows) {
		return false, err
	}
	return found, nil
}

// sliceTarget describes the slice a multi-row read fills.
type sliceTarget struct {
	slice   reflect.Value
	elem    reflect.Type
	ptrElem bool
	mapping *schema.Mapping
}

func (e *Engine) sliceTarget(dest any) (*sliceTarget, error) {
	if dest == nil {
		return nil, ErrNotSlice
	}
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Slice {
		return nil, ErrNotSlice
	}

	elem := v.Elem().Type().Elem()
	ptrElem := false
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
		ptrElem = true
	}
	if elem.Kind() != reflect.Struct {
		return nil, ErrNotSlice
	}

	m, err := e.validMapping(elem)
	if err != nil {
		return nil, err
	}
	return &sliceTarget{slice: v.Elem(), elem: elem, ptrElem: ptrElem, mapping: m}, nil
}

func (e *Engine) query(ctx context.Context, op string, ex database.Executor, cmd *command.Command, target *sliceTarget) (int, error) {
	cctx, cancel := e.commandContext(ctx)
	defer cancel()

	e.logCommand(cmd)
	rows, err := ex.QueryContext(cctx, cmd.Text, cmd.Args()...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n, err := e.collect(rows, target)
	e.metrics.AddRowsRead(op, n)
	return n, err
}

// collect materializes every row into a fresh slice and stores it in the
// target, replacing its previous contents. A row whose value cannot be
// converted is left out and its *schema.ConversionError returned, joined
// with any others, after all remaining rows were read.
func (e *Engine) collect(rows database.Rows, target *sliceTarget) (int, error) {
	out := reflect.MakeSlice(target.slice.Type(), 0, 8)
	var conversionErrs []error

	index := 0
	_, err := readRows(rows, func(row schema.Row) error {
		defer func() { index++ }()

		rec := reflect.New(target.elem)
		if err := e.registry.Materialize(target.mapping, row, rec.Interface()); err != nil {
			var ce *schema.ConversionError
			if errors.As(err, &ce) {
				conversionErrs = append(conversionErrs, fmt.Errorf("row %d: %w", index, err))
				return nil
			}
			return err
		}

		if target.ptrElem {
			out = reflect.Append(out, rec)
		} else {
			out = reflect.Append(out, rec.Elem())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	target.slice.Set(out)
	return out.Len(), errors.Join(conversionErrs...)
}
