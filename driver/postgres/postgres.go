// Package postgres is the PostgreSQL driver over lib/pq. Importing it
// registers the driver:
//
//	import _ "fluxdbc/driver/postgres"
//
// For the native pgx implementation see fluxdbc/driver/pgx.
package postgres

import (
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"fluxdbc"
	"fluxdbc/internal/sqlbridge"
)

const driverName = "postgres"

func init() {
	fluxdbc.Register(&Driver{})
}

// Driver matches option bags whose driver option is "postgres" or
// "postgresql".
type Driver struct{}

func (*Driver) Name() string { return driverName }

func (*Driver) Supports(opts *fluxdbc.Options) bool {
	name, ok := fluxdbc.Value(opts, fluxdbc.DriverName)
	return ok && (name == "postgres" || name == "postgresql")
}

func (*Driver) NewFactory(opts *fluxdbc.Options) (fluxdbc.ConnectionFactory, error) {
	dsn, timeout := keywordDSN(opts)
	return sqlbridge.NewFactory(driverName, sqlbridge.Config{
		Driver:         "postgres",
		DSN:            dsn,
		Product:        "PostgreSQL",
		VersionQuery:   "SHOW server_version",
		ConnectTimeout: timeout,
	})
}

// keywordDSN renders the option bag as a lib/pq keyword/value string.
// Options the driver does not understand are ignored.
func keywordDSN(opts *fluxdbc.Options) (string, time.Duration) {
	var parts []string
	add := func(key, value string) {
		parts = append(parts, key+"="+quote(value))
	}

	host := "localhost"
	if h, ok := fluxdbc.Value(opts, fluxdbc.Host); ok {
		host = h
	}
	add("host", host)
	if p, ok := fluxdbc.Value(opts, fluxdbc.Port); ok {
		add("port", fmt.Sprintf("%d", p))
	}
	if user, ok := fluxdbc.Value(opts, fluxdbc.User); ok {
		add("user", user)
	}
	if pass, ok := fluxdbc.Value(opts, fluxdbc.Password); ok {
		add("password", pass)
	}
	if db, ok := fluxdbc.Value(opts, fluxdbc.Database); ok {
		add("dbname", db)
	}
	if ssl, ok := fluxdbc.Value(opts, fluxdbc.SSL); ok {
		if ssl {
			add("sslmode", "require")
		} else {
			add("sslmode", "disable")
		}
	}

	var timeout time.Duration
	if t, ok := fluxdbc.Value(opts, fluxdbc.ConnectTimeout); ok {
		timeout = t
		secs := int((t + time.Second - 1) / time.Second)
		if secs < 1 {
			secs = 1
		}
		add("connect_timeout", fmt.Sprintf("%d", secs))
	}
	return strings.Join(parts, " "), timeout
}

// quote wraps a value in single quotes when it needs them, escaping the way
// lib/pq expects.
func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
