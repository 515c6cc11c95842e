// Package mysql is the MySQL driver. Importing it registers the driver:
//
//	import _ "fluxdbc/driver/mysql"
//
// It rides on go-sql-driver/mysql through the database/sql bridge.
package mysql

import (
	"net"
	"strconv"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"fluxdbc"
	"fluxdbc/internal/sqlbridge"
)

const (
	driverName  = "mysql"
	defaultPort = 3306
)

func init() {
	fluxdbc.Register(&Driver{})
}

// Driver matches option bags whose driver option is "mysql".
type Driver struct{}

func (*Driver) Name() string { return driverName }

func (*Driver) Supports(opts *fluxdbc.Options) bool {
	name, ok := fluxdbc.Value(opts, fluxdbc.DriverName)
	return ok && name == driverName
}

func (*Driver) NewFactory(opts *fluxdbc.Options) (fluxdbc.ConnectionFactory, error) {
	cfg, timeout := buildConfig(opts)
	return sqlbridge.NewFactory(driverName, sqlbridge.Config{
		Driver:         "mysql",
		DSN:            cfg.FormatDSN(),
		Product:        "MySQL",
		VersionQuery:   "SELECT VERSION()",
		ConnectTimeout: timeout,
	})
}

// buildConfig maps the option bag onto a go-sql-driver config. Options the
// driver does not understand are ignored.
func buildConfig(opts *fluxdbc.Options) (*gomysql.Config, time.Duration) {
	cfg := gomysql.NewConfig()

	host := "localhost"
	if h, ok := fluxdbc.Value(opts, fluxdbc.Host); ok {
		host = h
	}
	port := defaultPort
	if p, ok := fluxdbc.Value(opts, fluxdbc.Port); ok {
		port = p
	}
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	if proto, ok := fluxdbc.Value(opts, fluxdbc.Protocol); ok {
		cfg.Net = proto
		if proto == "unix" {
			// For sockets the host option carries the socket path.
			cfg.Addr = host
		}
	}

	if user, ok := fluxdbc.Value(opts, fluxdbc.User); ok {
		cfg.User = user
	}
	if pass, ok := fluxdbc.Value(opts, fluxdbc.Password); ok {
		cfg.Passwd = pass
	}
	if db, ok := fluxdbc.Value(opts, fluxdbc.Database); ok {
		cfg.DBName = db
	}
	if ssl, ok := fluxdbc.Value(opts, fluxdbc.SSL); ok && ssl {
		cfg.TLSConfig = "true"
	}

	var timeout time.Duration
	if t, ok := fluxdbc.Value(opts, fluxdbc.ConnectTimeout); ok {
		timeout = t
		cfg.Timeout = t
	}
	return cfg, timeout
}
