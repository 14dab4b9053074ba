package engine

import (
	"context"
	"reflect"
	"time"

	"github.com/Konsultn-Engineering/microrm/command"
	"github.com/Konsultn-Engineering/microrm/schema"
)

const (
	opCreateTable = "create_table"
	opTableExists = "table_exists"
	opDropTable   = "drop_table"
)

// CreateTable creates the table t maps to. The mapping must validate.
func (e *Engine) CreateTable(ctx context.Context, t reflect.Type) (err error) {
	started := time.Now()
	defer func() { e.observe(opCreateTable, started, 0, err) }()

	m, err := e.validMapping(t)
	if err != nil {
		return err
	}
	return e.execDefinition(ctx, command.New(e.generator.Text(command.CreateTable, m)))
}

// TableExists reports whether the table t maps to exists. Tables without an
// explicit schema are looked up in dbo.
func (e *Engine) TableExists(ctx context.Context, t reflect.Type) (exists bool, err error) {
	started := time.Now()
	defer func() { e.observe(opTableExists, started, 0, err) }()

	m, err := e.registry.Mapping(t)
	if err != nil {
		return false, err
	}

	cmd := command.New(e.generator.Text(command.TableExists, m))
	cmd.SetParameter(command.SchemaParameter, schemaOrDefault(m.Table))
	cmd.SetParameter(command.TableNameParameter, m.Table.Name)

	cctx, cancel := e.commandContext(ctx)
	defer cancel()

	e.logCommand(cmd)
	var count int64
	if err := e.db.QueryRowContext(cctx, cmd.Text, cmd.Args()...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// DropTable drops the table t maps to.
func (e *Engine) DropTable(ctx context.Context, t reflect.Type) (err error) {
	started := time.Now()
	defer func() { e.observe(opDropTable, started, 0, err) }()

	m, err := e.registry.Mapping(t)
	if err != nil {
		return err
	}
	return e.execDefinition(ctx, command.New(e.generator.Text(command.DropTable, m)))
}

func (e *Engine) execDefinition(ctx context.Context, cmd *command.Command) error {
	cctx, cancel := e.commandContext(ctx)
	defer cancel()

	e.logCommand(cmd)
	_, err := e.db.ExecContext(cctx, cmd.Text)
	return err
}

func schemaOrDefault(t schema.Table) string {
	if t.Schema == "" {
		return command.DefaultSchema
	}
	return t.Schema
}
