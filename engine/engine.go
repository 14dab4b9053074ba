// Package engine executes mapped CRUD operations against a database/sql
// connection. Every write runs in its own transaction; batches share one
// transaction and one prepared statement.
package engine

import (
	"context"
	"errors"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/microrm/command"
	"github.com/Konsultn-Engineering/microrm/database"
	"github.com/Konsultn-Engineering/microrm/logger"
	"github.com/Konsultn-Engineering/microrm/metrics"
	"github.com/Konsultn-Engineering/microrm/schema"
)

// DefaultCommandTimeout bounds each statement unless WithCommandTimeout
// says otherwise.
const DefaultCommandTimeout = 5 * time.Minute

var (
	ErrNilRecord  = command.ErrNilRecord
	ErrNotPointer = command.ErrNotPointer
	ErrNilCommand = command.ErrNilCommand
	ErrNotSlice   = errors.New("destination must be a pointer to a slice of structs or struct pointers")
	ErrMixedTypes = errors.New("batch records must all have the same type")
	ErrEmptyQuery = errors.New("query text is empty")
)

type Engine struct {
	db        database.Database
	registry  *schema.Registry
	generator *command.Generator
	logger    *zap.Logger
	metrics   *metrics.Metrics
	timeout   time.Duration
}

type Option func(*Engine)

// WithRegistry shares a schema registry with the engine. Ignored when
// WithGenerator is also given; the generator's registry wins.
func WithRegistry(r *schema.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

func WithGenerator(g *command.Generator) Option {
	return func(e *Engine) { e.generator = g }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger.OrNop(l) }
}

// WithMetrics records operation counts and latencies. nil disables metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithCommandTimeout sets the per-statement timeout. Non-positive values
// keep the default.
func WithCommandTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func New(db database.Database, opts ...Option) *Engine {
	e := &Engine{
		db:      db,
		logger:  zap.NewNop(),
		timeout: DefaultCommandTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}

	switch {
	case e.generator != nil:
		e.registry = e.generator.Registry()
	case e.registry != nil:
		e.generator = command.NewGenerator(e.registry, command.WithGeneratorLogger(e.logger))
	default:
		e.registry = schema.New(schema.WithLogger(e.logger))
		e.generator = command.NewGenerator(e.registry, command.WithGeneratorLogger(e.logger))
	}
	return e
}

func (e *Engine) Registry() *schema.Registry { return e.registry }

func (e *Engine) Generator() *command.Generator { return e.generator }

func (e *Engine) DB() database.Database { return e.db }

// CommandTimeout returns the per-statement timeout.
func (e *Engine) CommandTimeout() time.Duration { return e.timeout }

func (e *Engine) Close() error {
	return e.db.Close()
}

// commandContext derives the context one statement runs under.
func (e *Engine) commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.timeout)
}

// resolve checks record and returns its validated mapping.
func (e *Engine) resolve(record any) (*schema.Mapping, error) {
	if err := command.CheckRecord(record); err != nil {
		return nil, err
	}
	return e.validMapping(reflect.TypeOf(record))
}

func (e *Engine) validMapping(t reflect.Type) (*schema.Mapping, error) {
	m, err := e.registry.Mapping(t)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// resolveBatch checks every record up front so argument errors surface
// before a transaction is opened.
func (e *Engine) resolveBatch(records []any) (*schema.Mapping, error) {
	var t reflect.Type
	for _, record := range records {
		if err := command.CheckRecord(record); err != nil {
			return nil, err
		}
		rt := reflect.TypeOf(record)
		if t == nil {
			t = rt
		} else if rt != t {
			return nil, ErrMixedTypes
		}
	}
	return e.validMapping(t)
}

// observe logs and records metrics for one finished operation. rows is only
// logged; callers feed the row counters themselves.
func (e *Engine) observe(op string, started time.Time, rows int, err error) {
	e.metrics.Observe(op, started, err)
	if err != nil {
		e.logger.Debug("operation failed", zap.String("operation", op), zap.Error(err))
		return
	}
	e.logger.Debug("operation completed",
		zap.String("operation", op),
		zap.Int("rows", rows),
		zap.Duration("elapsed", time.Since(started)))
}
