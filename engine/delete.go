package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/Konsultn-Engineering/microrm/command"
)

const opDelete = "delete"

// Delete removes the row with record's key in its own transaction. Delete
// reports 1 on success, even when no row matched.
func (e *Engine) Delete(ctx context.Context, record any) (n int, err error) {
	started := time.Now()
	defer func() { e.observe(opDelete, started, n, err) }()

	m, err := e.resolve(record)
	if err != nil {
		return 0, err
	}

	cmd := command.New(e.generator.Text(command.Delete, m))
	if err := command.Bind(cmd, m.KeyColumns(), record); err != nil {
		return 0, err
	}

	err = e.withTransaction(ctx, opDelete, func(tx *sql.Tx) error {
		cctx, cancel := e.commandContext(ctx)
		defer cancel()

		e.logCommand(cmd)
		_, err := tx.ExecContext(cctx, cmd.Text, cmd.Args()...)
		return err
	})
	if err != nil {
		return 0, err
	}

	e.metrics.AddRowsAffected(opDelete, 1)
	return 1, nil
}
