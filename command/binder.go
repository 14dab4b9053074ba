package command

import (
	"database/sql"
	"errors"
	"reflect"
	"strings"

	"github.com/Konsultn-Engineering/microrm/dialect"
	"github.com/Konsultn-Engineering/microrm/schema"
)

var (
	ErrNilCommand = errors.New("command is nil")
	ErrNilRecord  = errors.New("record is nil")
	ErrNotPointer = errors.New("record must be a pointer to a struct")
)

// Parameter is one named command parameter. DbType and Size are fixed when
// the parameter is created; rebinding only replaces Value.
type Parameter struct {
	Name   string
	DbType dialect.DbType
	Size   int
	Value  any
}

// Command is SQL text plus its parameter set. A Command may be rebound and
// executed repeatedly but must not be shared between goroutines.
type Command struct {
	Text   string
	Params []*Parameter

	index map[string]int
}

func New(text string) *Command {
	return &Command{Text: text, index: make(map[string]int, 8)}
}

// Parameter looks a parameter up by name, with or without the @ prefix.
func (c *Command) Parameter(name string) (*Parameter, bool) {
	i, ok := c.index[normalize(name)]
	if !ok {
		return nil, false
	}
	return c.Params[i], true
}

// AdHocTextSize is the nvarchar size given to parameters added by SetParameter.
const AdHocTextSize = 4000

// SetParameter adds a text-typed parameter or updates the value of an
// existing one.
func (c *Command) SetParameter(name string, value any) *Parameter {
	if p, ok := c.Parameter(name); ok {
		p.Value = value
		return p
	}
	return c.add(&Parameter{Name: name, DbType: dialect.NVarChar, Size: AdHocTextSize, Value: value})
}

func (c *Command) add(p *Parameter) *Parameter {
	if c.index == nil {
		c.index = make(map[string]int, 8)
	}
	c.index[normalize(p.Name)] = len(c.Params)
	c.Params = append(c.Params, p)
	return p
}

// Args converts the parameters to database/sql named arguments typed by the
// default dialect.
func (c *Command) Args() []any {
	return c.ArgsFor(dialect.Default)
}

// ArgsFor converts the parameters to named arguments, letting d apply each
// parameter's DbType and Size to its value.
func (c *Command) ArgsFor(d dialect.Dialect) []any {
	args := make([]any, len(c.Params))
	for i, p := range c.Params {
		args[i] = sql.Named(strings.TrimPrefix(p.Name, "@"), d.Arg(p.DbType, p.Size, p.Value))
	}
	return args
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, "@"))
}

// Bind sets one parameter per column from record. Missing parameters are
// created with the column's DbType, and Size for text columns; existing ones
// only get a new value.
func Bind(cmd *Command, columns []*schema.Column, record any) error {
	if cmd == nil {
		return ErrNilCommand
	}
	if err := CheckRecord(record); err != nil {
		return err
	}

	for _, col := range columns {
		value := col.GetValue(record)

		if p, ok := cmd.Parameter(col.ParameterName()); ok {
			p.Value = value
			continue
		}

		p := &Parameter{
			Name:   col.ParameterName(),
			DbType: col.DbType,
			Value:  value,
		}
		if col.IsText() {
			p.Size = col.Length
		}
		cmd.add(p)
	}
	return nil
}

// CheckRecord rejects nil records and records that are not struct pointers.
func CheckRecord(record any) error {
	if record == nil {
		return ErrNilRecord
	}
	v := reflect.ValueOf(record)
	if v.Kind() != reflect.Ptr || v.Type().Elem().Kind() != reflect.Struct {
		return ErrNotPointer
	}
	if v.IsNil() {
		return ErrNilRecord
	}
	return nil
}
