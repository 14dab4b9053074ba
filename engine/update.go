package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Konsultn-Engineering/microrm/command"
	"github.com/Konsultn-Engineering/microrm/schema"
)

const (
	opUpdate     = "update"
	opUpdateMany = "update_many"
)

// Update writes every non-key column of record to the row with its key, in
// its own transaction. Update reports 1 on success, even when no row
// matched.
func (e *Engine) Update(ctx context.Context, record any) (n int, err error) {
	started := time.Now()
	defer func() { e.observe(opUpdate, started, n, err) }()

	m, err := e.resolve(record)
	if err != nil {
		return 0, err
	}

	cmd := command.New(e.generator.Text(command.Update, m))
	err = e.withTransaction(ctx, opUpdate, func(tx *sql.Tx) error {
		_, err := e.updateOne(ctx, statement{exec: tx}, m, cmd, record)
		return err
	})
	if err != nil {
		return 0, err
	}

	e.metrics.AddRowsAffected(opUpdate, 1)
	return 1, nil
}

// UpdateMany updates records in one transaction through one prepared
// statement and returns the sum of the rows the driver reports affected.
// Records matching no row add nothing. On any failure nothing is committed
// and the count is 0.
func (e *Engine) UpdateMany(ctx context.Context, records []any) (n int, err error) {
	started := time.Now()
	defer func() { e.observe(opUpdateMany, started, n, err) }()

	if len(records) == 0 {
		return 0, nil
	}
	m, err := e.resolveBatch(records)
	if err != nil {
		return 0, err
	}

	cmd := command.New(e.generator.Text(command.Update, m))
	total := 0
	err = e.withTransaction(ctx, opUpdateMany, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, cmd.Text)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, record := range records {
			affected, err := e.updateOne(ctx, statement{stmt: stmt}, m, cmd, record)
			if err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
			total += affected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	e.metrics.AddRowsAffected(opUpdateMany, total)
	return total, nil
}

func (e *Engine) updateOne(ctx context.Context, st statement, m *schema.Mapping, cmd *command.Command, record any) (int, error) {
	if err := command.Bind(cmd, m.UpdateColumns(), record); err != nil {
		return 0, err
	}
	if err := command.Bind(cmd, m.KeyColumns(), record); err != nil {
		return 0, err
	}

	cctx, cancel := e.commandContext(ctx)
	defer cancel()

	e.logCommand(cmd)
	res, err := st.execContext(cctx, cmd)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(affected), nil
}
