package connector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Konsultn-Engineering/microrm/dialect"
)

// SQLConnection is a Connection over a database/sql pool.
type SQLConnection struct {
	db      *sql.DB
	dialect dialect.Dialect
}

// OpenDB opens a pool for driverName, applies the pool settings from config
// and pings it once.
func OpenDB(ctx context.Context, driverName, dsn string, config Config, d dialect.Dialect) (*SQLConnection, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driverName, err)
	}

	pool := config.WithDefaults().Pool
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)
	db.SetConnMaxIdleTime(pool.MaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", driverName, err)
	}

	return &SQLConnection{db: db, dialect: d}, nil
}

func (c *SQLConnection) DB() *sql.DB { return c.db }

func (c *SQLConnection) Dialect() dialect.Dialect { return c.dialect }

func (c *SQLConnection) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *SQLConnection) Stats() ConnectionStats {
	return statsFrom(c.db.Stats())
}

func (c *SQLConnection) Close() error {
	return c.db.Close()
}
