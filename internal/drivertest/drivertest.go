// Package drivertest provides scriptable fakes of the driver contract for
// tests: a registrable driver, a factory, a connection and a cursor, all with
// call counters so tests can assert what the code under test actually did.
package drivertest

import (
	"context"
	"sync/atomic"
	"time"

	"fluxdbc"
)

// Driver is a fake driver. By default it matches option bags whose driver
// option equals DriverName; set Matches to script something else.
type Driver struct {
	DriverName string
	Matches    func(*fluxdbc.Options) bool
	Factory    fluxdbc.ConnectionFactory
	FactoryErr error

	SupportsCalls atomic.Int64
	FactoryCalls  atomic.Int64
}

func (d *Driver) Name() string { return d.DriverName }

func (d *Driver) Supports(opts *fluxdbc.Options) bool {
	d.SupportsCalls.Add(1)
	if d.Matches != nil {
		return d.Matches(opts)
	}
	name, ok := fluxdbc.Value(opts, fluxdbc.DriverName)
	return ok && name == d.DriverName
}

func (d *Driver) NewFactory(opts *fluxdbc.Options) (fluxdbc.ConnectionFactory, error) {
	d.FactoryCalls.Add(1)
	if d.FactoryErr != nil {
		return nil, d.FactoryErr
	}
	if d.Factory != nil {
		return d.Factory, nil
	}
	return &Factory{FactoryName: d.DriverName}, nil
}

// Factory is a fake connection factory. By default every request dials a
// fresh Conn; set Dial to script the dial.
type Factory struct {
	FactoryName string
	Dial        fluxdbc.DialFunc

	CreateCalls atomic.Int64
}

func (f *Factory) Create() *fluxdbc.ConnectionRequest {
	f.CreateCalls.Add(1)
	dial := f.Dial
	if dial == nil {
		dial = func(context.Context) (fluxdbc.Connection, error) { return &Conn{}, nil }
	}
	return fluxdbc.NewConnectionRequest(dial)
}

func (f *Factory) Metadata() *fluxdbc.FactoryMetadata {
	name := f.FactoryName
	if name == "" {
		name = "fake"
	}
	return fluxdbc.NewFactoryMetadata(name)
}

// Conn is a fake connection. Execute delegates to ExecuteFn when set and
// otherwise reports an update of zero rows. RemoteProbes counts the round
// trips a remote validation would make, so tests can assert that local
// validation makes none.
type Conn struct {
	ExecuteFn func(ctx context.Context, query string) (*fluxdbc.Result, error)
	RemoteErr error
	Product   string
	OnClose   func()

	CloseCalls   atomic.Int64
	RemoteProbes atomic.Int64

	closed atomic.Bool
	inTx   bool
	level  fluxdbc.IsolationLevel
}

func (c *Conn) Execute(ctx context.Context, query string) (*fluxdbc.Result, error) {
	if c.closed.Load() {
		return nil, fluxdbc.ErrConnectionClosed
	}
	if c.ExecuteFn != nil {
		return c.ExecuteFn(ctx, query)
	}
	return fluxdbc.NewUpdateResult(0), nil
}

func (c *Conn) Begin(ctx context.Context) error {
	if c.closed.Load() {
		return fluxdbc.ErrConnectionClosed
	}
	if c.inTx {
		return fluxdbc.ErrTransactionActive
	}
	c.inTx = true
	return nil
}

func (c *Conn) Commit(ctx context.Context) error {
	if c.closed.Load() {
		return fluxdbc.ErrConnectionClosed
	}
	if !c.inTx {
		return fluxdbc.ErrNoTransaction
	}
	c.inTx = false
	return nil
}

func (c *Conn) Rollback(ctx context.Context) error {
	if c.closed.Load() {
		return fluxdbc.ErrConnectionClosed
	}
	if !c.inTx {
		return fluxdbc.ErrNoTransaction
	}
	c.inTx = false
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
		c.RemoteProbes.Add(1)
		if ctx.Err() != nil {
			return false
		}
		return c.RemoteErr == nil
	}
	return true
}

func (c *Conn) Close(ctx context.Context) error {
	c.CloseCalls.Add(1)
	if c.closed.CompareAndSwap(false, true) {
		if c.OnClose != nil {
			c.OnClose()
		}
	}
	return nil
}

func (c *Conn) Metadata() *fluxdbc.ConnectionMetadata {
	product := c.Product
	if product == "" {
		product = "FakeDB"
	}
	return fluxdbc.NewConnectionMetadata(product, "0.0")
}

// NewQueryConn returns a Conn whose Execute always yields a query result
// over the given rows.
func NewQueryConn(cols []fluxdbc.ColumnMetadata, rows [][]any) *Conn {
	return &Conn{
		ExecuteFn: func(context.Context, string) (*fluxdbc.Result, error) {
			return fluxdbc.NewQueryResult(&ScriptedCursor{Cols: cols, Rows: rows}), nil
		},
	}
}

// CountingDialer is a dial that accounts for the resource it acquires.
// Active tracks resources currently held: it rises when a dial starts and
// falls when the dial is canceled or the dialed connection is closed, so a
// test that ends with Active above zero has found a leak.
type CountingDialer struct {
	Delay time.Duration
	Err   error

	Dials    atomic.Int64
	Active   atomic.Int64
	Released atomic.Int64
}

func (d *CountingDialer) Dial(ctx context.Context) (fluxdbc.Connection, error) {
	d.Dials.Add(1)
	d.Active.Add(1)
	release := func() {
		d.Active.Add(-1)
		d.Released.Add(1)
	}
	if d.Delay > 0 {
		t := time.NewTimer(d.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if d.Err != nil {
		release()
		return nil, d.Err
	}
	return &Conn{OnClose: release}, nil
}

// ScriptedCursor plays back a fixed set of rows. Set NextErr to make Next
// fail when it reaches row index NextErrAt.
type ScriptedCursor struct {
	Cols      []fluxdbc.ColumnMetadata
	Rows      [][]any
	NextErr   error
	NextErrAt int

	CloseCalls atomic.Int64

	pos int
	cur []any
}

func (c *ScriptedCursor) Columns() []fluxdbc.ColumnMetadata { return c.Cols }

func (c *ScriptedCursor) Next(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if c.NextErr != nil && c.pos == c.NextErrAt {
		return false, c.NextErr
	}
	if c.pos >= len(c.Rows) {
		return false, nil
	}
	c.cur = c.Rows[c.pos]
	c.pos++
	return true, nil
}

func (c *ScriptedCursor) Values() []any { return c.cur }

func (c *ScriptedCursor) Close(ctx context.Context) error {
	c.CloseCalls.Add(1)
	return nil
}
