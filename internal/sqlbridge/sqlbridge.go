// Package sqlbridge adapts database/sql drivers to the fluxdbc contract.
// Driver packages that ride on database/sql, such as mysql and postgres, are
// thin configuration layers over this bridge: they build a DSN and hand it
// here.
//
// Each connection request checks out a dedicated session, so a fluxdbc
// connection maps one to one onto a database session. The bridge keeps no
// idle pool of its own; capping and reuse belong to wrappers.
package sqlbridge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"fluxdbc"
)

// Config describes one database/sql target.
type Config struct {
	// Driver is the database/sql driver name, as passed to sql.Open.
	Driver string

	// DSN is the driver-specific data source name.
	DSN string

	// Product names the database product for connection metadata.
	Product string

	// VersionQuery is a single-value query reporting the server version,
	// such as SELECT VERSION(). Empty skips the probe.
	VersionQuery string

	// ConnectTimeout bounds each dial. Zero means no bound beyond the
	// caller's context.
	ConnectTimeout time.Duration
}

// Factory mints fluxdbc connections over a database/sql handle.
type Factory struct {
	cfg  Config
	meta *fluxdbc.FactoryMetadata
	db   *sql.DB
}

// NewFactory validates cfg and prepares a factory. The DSN is parsed here,
// so malformed configuration fails at construction; no connection is opened
// until a request is awaited.
func NewFactory(name string, cfg Config) (*Factory, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlbridge: open %s: %w", cfg.Driver, err)
	}
	// No idle reuse: returning a session must release it for real.
	db.SetMaxIdleConns(0)
	return &Factory{
		cfg:  cfg,
		meta: fluxdbc.NewFactoryMetadata(name),
		db:   db,
	}, nil
}

func (f *Factory) Metadata() *fluxdbc.FactoryMetadata { return f.meta }

func (f *Factory) Create() *fluxdbc.ConnectionRequest {
	return fluxdbc.NewConnectionRequest(f.dial)
}

// Close releases the underlying database handle. Connections already
// checked out stay usable until closed themselves.
func (f *Factory) Close() error { return f.db.Close() }

func (f *Factory) dial(ctx context.Context) (fluxdbc.Connection, error) {
	if f.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.ConnectTimeout)
		defer cancel()
	}
	sc, err := f.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlbridge: connect %s: %w", f.meta.Name(), err)
	}

	version := ""
	if f.cfg.VersionQuery != "" {
		// Best effort; a session that cannot report its version is still a
		// session.
		_ = sc.QueryRowContext(ctx, f.cfg.VersionQuery).Scan(&version)
	}
	return &Conn{
		sc:   sc,
		meta: fluxdbc.NewConnectionMetadata(f.cfg.Product, version),
	}, nil
}

// Conn is one checked-out database session.
type Conn struct {
	sc     *sql.Conn
	meta   *fluxdbc.ConnectionMetadata
	closed atomic.Bool
	tx     *sql.Tx
	level  fluxdbc.IsolationLevel
}

// runner is the common querying surface of *sql.Conn and *sql.Tx.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (c *Conn) runner() runner {
	if c.tx != nil {
		return c.tx
	}
	return c.sc
}

func (c *Conn) Execute(ctx context.Context, query string) (*fluxdbc.Result, error) {
	if c.closed.Load() {
		return nil, fluxdbc.ErrConnectionClosed
	}
	if ReturnsRows(query) {
		rows, err := c.runner().QueryContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("sqlbridge: query failed: %w", err)
		}
		cur, err := newCursor(rows)
		if err != nil {
			return nil, err
		}
		return fluxdbc.NewQueryResult(cur), nil
	}

	res, err := c.runner().ExecContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlbridge: statement failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Drivers without affected-count support report zero.
		n = 0
	}
	return fluxdbc.NewUpdateResult(n), nil
}

func (c *Conn) Begin(ctx context.Context) error {
	if c.closed.Load() {
		return fluxdbc.ErrConnectionClosed
	}
	if c.tx != nil {
		return fluxdbc.ErrTransactionActive
	}
	tx, err := c.sc.BeginTx(ctx, &sql.TxOptions{Isolation: sqlIsolation(c.level)})
	if err != nil {
		return fmt.Errorf("sqlbridge: begin: %w", err)
	}
	c.tx = tx
	return nil
}

func (c *Conn) Commit(ctx context.Context) error {
	if c.closed.Load() {
		return fluxdbc.ErrConnectionClosed
	}
	if c.tx == nil {
		return fluxdbc.ErrNoTransaction
	}
	err := c.tx.Commit()
	c.tx = nil
	if err != nil {
		return fmt.Errorf("sqlbridge: commit: %w", err)
	}
	return nil
}

func (c *Conn) Rollback(ctx context.Context) error {
	if c.closed.Load() {
		return fluxdbc.ErrConnectionClosed
	}
	if c.tx == nil {
		return fluxdbc.ErrNoTransaction
	}
	err := c.tx.Rollback()
	c.tx = nil
	if err != nil {
		return fmt.Errorf("sqlbridge: rollback: %w", err)
	}
	return nil
}

func (c *Conn) SetIsolation(ctx context.Context, level fluxdbc.IsolationLevel) error {
	if c.closed.Load() {
		return fluxdbc.ErrConnectionClosed
	}
	c.level = level
	return nil
}

func (c *Conn) Validate(ctx context.Context, depth fluxdbc.ValidationDepth) bool {
	if c.closed.Load() {
		return false
	}
	if depth == fluxdbc.ValidationRemote {
		return c.sc.PingContext(ctx) == nil
	}
	return true
}

func (c *Conn) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.tx != nil {
		_ = c.tx.Rollback()
		c.tx = nil
	}
	err := c.sc.Close()
	if err == nil || errors.Is(err, sql.ErrConnDone) {
		return nil
	}
	return fmt.Errorf("sqlbridge: close: %w", err)
}

func (c *Conn) Metadata() *fluxdbc.ConnectionMetadata { return c.meta }

func sqlIsolation(level fluxdbc.IsolationLevel) sql.IsolationLevel {
	switch level {
	case fluxdbc.IsolationReadUncommitted:
		return sql.LevelReadUncommitted
	case fluxdbc.IsolationReadCommitted:
		return sql.LevelReadCommitted
	case fluxdbc.IsolationRepeatableRead:
		return sql.LevelRepeatableRead
	case fluxdbc.IsolationSerializable:
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}
