// Package pgx is a PostgreSQL driver over the native pgx protocol
// implementation, bypassing database/sql. Importing it registers the driver
// under the name "pgx":
//
//	import _ "fluxdbc/driver/pgx"
//
// It deliberately does not claim "postgres", so it can coexist with the
// lib/pq driver without making discovery ambiguous.
package pgx

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"fluxdbc"
	"fluxdbc/internal/sqlbridge"
)

const driverName = "pgx"

func init() {
	fluxdbc.Register(&Driver{})
}

// Driver matches option bags whose driver option is "pgx".
type Driver struct{}

func (*Driver) Name() string { return driverName }

func (*Driver) Supports(opts *fluxdbc.Options) bool {
	name, ok := fluxdbc.Value(opts, fluxdbc.DriverName)
	return ok && name == driverName
}

func (*Driver) NewFactory(opts *fluxdbc.Options) (fluxdbc.ConnectionFactory, error) {
	cfg, err := pgx.ParseConfig(connURL(opts))
	if err != nil {
		return nil, fmt.Errorf("pgx: parse config: %w", err)
	}
	if t, ok := fluxdbc.Value(opts, fluxdbc.ConnectTimeout); ok {
		cfg.ConnectTimeout = t
	}
	return &Factory{
		cfg:  cfg,
		meta: fluxdbc.NewFactoryMetadata(driverName),
	}, nil
}

// connURL renders the option bag as a postgres URL; net/url takes care of
// escaping. Options the driver does not understand are ignored.
func connURL(opts *fluxdbc.Options) string {
	u := url.URL{Scheme: "postgres"}

	host := "localhost"
	if h, ok := fluxdbc.Value(opts, fluxdbc.Host); ok {
		host = h
	}
	u.Host = host
	if p, ok := fluxdbc.Value(opts, fluxdbc.Port); ok {
		u.Host = host + ":" + strconv.Itoa(p)
	}

	if user, ok := fluxdbc.Value(opts, fluxdbc.User); ok {
		if pass, ok := fluxdbc.Value(opts, fluxdbc.Password); ok {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}
	if db, ok := fluxdbc.Value(opts, fluxdbc.Database); ok {
		u.Path = "/" + db
	}

	q := url.Values{}
	if ssl, ok := fluxdbc.Value(opts, fluxdbc.SSL); ok {
		if ssl {
			q.Set("sslmode", "require")
		} else {
			q.Set("sslmode", "disable")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Factory mints native pgx connections.
type Factory struct {
	cfg  *pgx.ConnConfig
	meta *fluxdbc.FactoryMetadata
}

func (f *Factory) Metadata() *fluxdbc.FactoryMetadata { return f.meta }

func (f *Factory) Create() *fluxdbc.ConnectionRequest {
	return fluxdbc.NewConnectionRequest(f.dial)
}

func (f *Factory) dial(ctx context.Context) (fluxdbc.Connection, error) {
	pc, err := pgx.ConnectConfig(ctx, f.cfg.Copy())
	if err != nil {
		return nil, fmt.Errorf("pgx: connect: %w", err)
	}
	// The server announces its version during startup; no probe query needed.
	version := pc.PgConn().ParameterStatus("server_version")
	return &Conn{
		conn: pc,
		meta: fluxdbc.NewConnectionMetadata("PostgreSQL", version),
	}, nil
}

// Conn is one native PostgreSQL session.
type Conn struct {
	conn  *pgx.Conn
	meta  *fluxdbc.ConnectionMetadata
	tx    pgx.Tx
	level fluxdbc.IsolationLevel
}

func (c *Conn) Execute(ctx context.Context, query string) (*fluxdbc.Result, error) {
	if c.conn.IsClosed() {
		return nil, fluxdbc.ErrConnectionClosed
	}
	if sqlbridge.ReturnsRows(query) {
		var (
			rows pgx.Rows
			err  error
		)
		if c.tx != nil {
			rows, err = c.tx.Query(ctx, query)
		} else {
			rows, err = c.conn.Query(ctx, query)
		}
		if err != nil {
			return nil, fmt.Errorf("pgx: query failed: %w", err)
		}
		return fluxdbc.NewQueryResult(newCursor(c.conn, rows)), nil
	}

	var (
		tag pgconn.CommandTag
		err error
	)
	if c.tx != nil {
		tag, err = c.tx.Exec(ctx, query)
	} else {
		tag, err = c.conn.Exec(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("pgx: statement failed: %w", err)
	}
	return fluxdbc.NewUpdateResult(tag.RowsAffected()), nil
}

func (c *Conn) Begin(ctx context.Context) error {
	if c.conn.IsClosed() {
		return fluxdbc.ErrConnectionClosed
	}
	if c.tx != nil {
		return fluxdbc.ErrTransactionActive
	}
	tx, err := c.conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: txIsolation(c.level)})
	if err != nil {
		return fmt.Errorf("pgx: begin: %w", err)
	}
	c.tx = tx
	return nil
}

func (c *Conn) Commit(ctx context.Context) error {
	if c.tx == nil {
		return fluxdbc.ErrNoTransaction
	}
	err := c.tx.Commit(ctx)
	c.tx = nil
	if err != nil {
		return fmt.Errorf("pgx: commit: %w", err)
	}
	return nil
}

func (c *Conn) Rollback(ctx context.Context) error {
	if c.tx == nil {
		return fluxdbc.ErrNoTransaction
	}
	err := c.tx.Rollback(ctx)
	c.tx = nil
	if err != nil {
		return fmt.Errorf("pgx: rollback: %w", err)
	}
	return nil
}

func (c *Conn) SetIsolation(ctx context.Context, level fluxdbc.IsolationLevel) error {
	if c.conn.IsClosed() {
		return fluxdbc.ErrConnectionClosed
	}
	c.level = level
	return nil
}

func (c *Conn) Validate(ctx context.Context, depth fluxdbc.ValidationDepth) bool {
	if c.conn.IsClosed() {
		return false
	}
	if depth == fluxdbc.ValidationRemote {
		return c.conn.Ping(ctx) == nil
	}
	return true
}

func (c *Conn) Close(ctx context.Context) error {
	if c.conn.IsClosed() {
		return nil
	}
	if c.tx != nil {
		_ = c.tx.Rollback(ctx)
		c.tx = nil
	}
	return c.conn.Close(ctx)
}

func (c *Conn) Metadata() *fluxdbc.ConnectionMetadata { return c.meta }

func txIsolation(level fluxdbc.IsolationLevel) pgx.TxIsoLevel {
	switch level {
	case fluxdbc.IsolationReadUncommitted:
		return pgx.ReadUncommitted
	case fluxdbc.IsolationReadCommitted:
		return pgx.ReadCommitted
	case fluxdbc.IsolationRepeatableRead:
		return pgx.RepeatableRead
	case fluxdbc.IsolationSerializable:
		return pgx.Serializable
	default:
		// Empty means the server default.
		return ""
	}
}
