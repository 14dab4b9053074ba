// Package microrm wires configuration, logging, a registered connector
// provider and the engine into one handle.
package microrm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/microrm/config"
	"github.com/Konsultn-Engineering/microrm/connector"
	"github.com/Konsultn-Engineering/microrm/engine"
	"github.com/Konsultn-Engineering/microrm/logger"
	"github.com/Konsultn-Engineering/microrm/schema"
)

// DB is an open engine together with the connection it runs on.
type DB struct {
	*engine.Engine

	conn   connector.Connection
	logger *zap.Logger
}

// Open connects with cfg.Provider and builds an engine configured from cfg.
// Extra engine options are applied last. The provider package must be
// imported for its registration to run.
func Open(ctx context.Context, cfg *config.Config, opts ...engine.Option) (*DB, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	naming, err := schema.NamingStrategyByName(cfg.Engine.Naming)
	if err != nil {
		return nil, err
	}

	c, err := connector.New(cfg.Provider, cfg.Database)
	if err != nil {
		return nil, err
	}
	conn, err := c.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Database.Host, err)
	}

	registry := schema.New(
		schema.WithLogger(log),
		schema.WithDialect(conn.Dialect()),
		schema.WithNamingStrategy(naming),
		schema.WithPlanCacheSize(cfg.Engine.PlanCacheSize),
	)

	base := []engine.Option{
		engine.WithRegistry(registry),
		engine.WithLogger(log),
		engine.WithCommandTimeout(cfg.Engine.CommandTimeout),
	}
	e := engine.New(conn.DB(), append(base, opts...)...)

	log.Info("database opened",
		zap.String("provider", cfg.Provider),
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database))

	return &DB{Engine: e, conn: conn, logger: log}, nil
}

// Logger returns the logger built from the configuration.
func (db *DB) Logger() *zap.Logger { return db.logger }

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.Health(ctx)
}

func (db *DB) Stats() connector.ConnectionStats {
	return db.conn.Stats()
}

func (db *DB) Close() error {
	_ = db.logger.Sync()
	return db.conn.Close()
}
