package database

import (
	"context"
	"database/sql"
)

// Database is the connection handle the engine executes against. *sql.DB
// satisfies it.
type Database interface {
	Executor
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	PingContext(ctx context.Context) error
	Close() error
}

// Executor runs statements. Both *sql.DB and *sql.Tx satisfy it, so the same
// code paths serve single statements and transactions.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Rows is the part of *sql.Rows needed to read a result set.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Columns() ([]string, error)
	Err() error
}

var (
	_ Database = (*sql.DB)(nil)
	_ Executor = (*sql.Tx)(nil)
	_ Rows     = (*sql.Rows)(nil)
)
