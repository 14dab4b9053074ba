// Package sqlserver registers the "sqlserver" connector provider backed by
// go-mssqldb.
package sqlserver

import (
	"context"
	"strconv"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/Konsultn-Engineering/microrm/connector"
	"github.com/Konsultn-Engineering/microrm/dialect"
)

// Name is the provider and driver name.
const Name = "sqlserver"

type Provider struct{}

func init() {
	connector.Register(Name, &Provider{})
}

func (p *Provider) Connect(ctx context.Context, config connector.Config) (connector.Connection, error) {
	return connector.OpenDB(ctx, Name, BuildDSN(config), config, p.Dialect())
}

func (p *Provider) Dialect() dialect.Dialect {
	return dialect.SQLServer{}
}

func (p *Provider) HealthCheck(ctx context.Context, conn connector.Connection) error {
	return conn.Health(ctx)
}

// BuildDSN renders config as a go-mssqldb URL.
func BuildDSN(config connector.Config) string {
	b := connector.NewDSNBuilder(Name).
		Auth(config.Username, config.Password).
		Host(config.Host, config.Port).
		Instance(config.Instance).
		Database(config.Database).
		Param("encrypt", config.Encrypt).
		Params(config.Params)

	if config.ConnectTimeout > 0 {
		b.Param("dial timeout", strconv.Itoa(int(config.ConnectTimeout.Seconds())))
	}
	return b.WithSQLServerDefaults().Build()
}
