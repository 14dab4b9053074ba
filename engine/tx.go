package engine

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/microrm/command"
	"github.com/Konsultn-Engineering/microrm/database"
)

// withTransaction runs fn in a new transaction, committing on success and
// rolling back on error or panic. Errors from fn are returned unchanged.
func (e *Engine) withTransaction(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			e.logger.Warn("rollback failed",
				zap.String("operation", op),
				zap.Error(rbErr),
				zap.NamedError("cause", err))
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		e.logger.Warn("transaction rolled back", zap.String("operation", op), zap.Error(err))
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// statement runs one command either through a prepared statement or as ad
// hoc text on an executor.
type statement struct {
	exec database.Executor
	stmt *sql.Stmt
}

func (s statement) execContext(ctx context.Context, cmd *command.Command) (sql.Result, error) {
	if s.stmt != nil {
		return s.stmt.ExecContext(ctx, cmd.Args()...)
	}
	return s.exec.ExecContext(ctx, cmd.Text, cmd.Args()...)
}

func (s statement) queryRowContext(ctx context.Context, cmd *command.Command) *sql.Row {
	if s.stmt != nil {
		return s.stmt.QueryRowContext(ctx, cmd.Args()...)
	}
	return s.exec.QueryRowContext(ctx, cmd.Text, cmd.Args()...)
}

func (e *Engine) logCommand(cmd *command.Command) {
	if ce := e.logger.Check(zap.DebugLevel, "executing command"); ce != nil {
		ce.Write(zap.String("sql", cmd.Text), zap.Int("params", len(cmd.Params)))
	}
}
