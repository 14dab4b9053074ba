package engine

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"time"

	"github.com/Konsultn-Engineering/microrm/command"
	"github.com/Konsultn-Engineering/microrm/schema"
)

const (
	opInsert     = "insert"
	opInsertMany = "insert_many"
)

// Insert writes record, a pointer to a mapped struct, in its own
// transaction. A server-generated key is assigned back into record. With
// readback the row is selected again by key and copied into record so server
// defaults show up. Insert reports 1 on success whatever the driver's
// affected-row count. On failure record is restored to its state before the
// call, so it never carries a key that no committed row has.
func (e *Engine) Insert(ctx context.Context, record any, readback bool) (n int, err error) {
	started := time.Now()
	defer func() { e.observe(opInsert, started, n, err) }()

	m, err := e.resolve(record)
	if err != nil {
		return 0, err
	}

	cmd := command.New(e.generator.Text(command.Insert, m))
	restore := snapshot(record)
	err = e.withTransaction(ctx, opInsert, func(tx *sql.Tx) error {
		return e.insertOne(ctx, statement{exec: tx}, tx, m, cmd, record, readback)
	})
	if err != nil {
		restore()
		return 0, err
	}

	e.metrics.AddRowsAffected(opInsert, 1)
	return 1, nil
}

// InsertMany writes records in one transaction through one prepared
// statement, rebinding the same command for every record. All records must
// share one mapped type. On any failure nothing is committed, every record
// is restored to its state before the call and the count is 0.
func (e *Engine) InsertMany(ctx context.Context, records []any, readback bool) (n int, err error) {
	started := time.Now()
	defer func() { e.observe(opInsertMany, started, n, err) }()

	if len(records) == 0 {
		return 0, nil
	}
	m, err := e.resolveBatch(records)
	if err != nil {
		return 0, err
	}

	cmd := command.New(e.generator.Text(command.Insert, m))
	restores := make([]func(), len(records))
	for i, record := range records {
		restores[i] = snapshot(record)
	}
	count := 0
	err = e.withTransaction(ctx, opInsertMany, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, cmd.Text)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, record := range records {
			if err := e.insertOne(ctx, statement{stmt: stmt}, tx, m, cmd, record, readback); err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		for _, restore := range restores {
			restore()
		}
		return 0, err
	}

	e.metrics.AddRowsAffected(opInsertMany, count)
	return count, nil
}

func (e *Engine) insertOne(ctx context.Context, st statement, tx *sql.Tx, m *schema.Mapping, cmd *command.Command, record any, readback bool) error {
	if err := e.registry.AssignGeneratedKeys(m, record); err != nil {
		return err
	}
	if err := command.Bind(cmd, m.InsertColumns(), record); err != nil {
		return err
	}

	if err := e.executeInsert(ctx, st, m, cmd, record); err != nil {
		return err
	}

	if readback {
		_, err := e.selectSingle(ctx, tx, m, record)
		return err
	}
	return nil
}

// executeInsert runs the bound insert. With a generated key the statement
// returns the new identity as a scalar, which is converted to the key's
// native type and assigned to record.
func (e *Engine) executeInsert(ctx context.Context, st statement, m *schema.Mapping, cmd *command.Command, record any) error {
	cctx, cancel := e.commandContext(ctx)
	defer cancel()

	e.logCommand(cmd)
	gen := m.GeneratedColumn()
	if gen == nil {
		_, err := st.execContext(cctx, cmd)
		return err
	}

	var id any
	if err := st.queryRowContext(cctx, cmd).Scan(&id); err != nil {
		return err
	}
	return gen.SetValue(record, id)
}

// snapshot copies the struct behind record and returns a func that writes the
// copy back. record must already be a checked non-nil struct pointer.
func snapshot(record any) func() {
	v := reflect.ValueOf(record).Elem()
	saved := reflect.New(v.Type()).Elem()
	saved.Set(v)
	return func() { v.Set(saved) }
}
