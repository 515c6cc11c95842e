// Package pool caps how many connections from a factory may be open at once.
// It is a decorating factory: requests beyond the cap wait in Await until a
// permit frees up, and closing a connection returns its permit. It does not
// reuse idle connections.
package pool

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"fluxdbc"
)

// Factory wraps an inner factory with an open-connection cap.
type Factory struct {
	inner   fluxdbc.ConnectionFactory
	sem     *semaphore.Weighted
	maxOpen int64
	open    atomic.Int64
}

// Wrap caps connections minted by inner at maxOpen. It panics if maxOpen is
// not positive or inner is nil.
func Wrap(inner fluxdbc.ConnectionFactory, maxOpen int64) *Factory {
	if inner == nil {
		panic("pool: Wrap called with nil factory")
	}
	if maxOpen <= 0 {
		panic("pool: max open connections must be positive")
	}
	return &Factory{
		inner:   inner,
		sem:     semaphore.NewWeighted(maxOpen),
		maxOpen: maxOpen,
	}
}

func (f *Factory) Metadata() *fluxdbc.FactoryMetadata { return f.inner.Metadata() }

// Unwrap exposes the inner factory.
func (f *Factory) Unwrap() fluxdbc.ConnectionFactory { return f.inner }

// Open reports how many permits are currently held.
func (f *Factory) Open() int64 { return f.open.Load() }

func (f *Factory) Create() *fluxdbc.ConnectionRequest {
	return fluxdbc.NewConnectionRequest(f.dial)
}

func (f *Factory) dial(ctx context.Context) (fluxdbc.Connection, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	conn, err := f.inner.Create().Await(ctx)
	if err != nil {
		f.sem.Release(1)
		return nil, err
	}
	id := uuid.NewString()
	open := f.open.Add(1)
	slog.Debug("connection opened",
		"id", id,
		"driver", f.inner.Metadata().Name(),
		"open", open,
		"max", f.maxOpen)
	return &pooledConn{Connection: conn, f: f, id: id}, nil
}

// pooledConn returns its permit on the first Close. The embedded connection
// keeps its own close idempotency.
type pooledConn struct {
	fluxdbc.Connection
	f        *Factory
	id       string
	released atomic.Bool
}

func (c *pooledConn) Close(ctx context.Context) error {
	err := c.Connection.Close(ctx)
	if c.released.CompareAndSwap(false, true) {
		open := c.f.open.Add(-1)
		c.f.sem.Release(1)
		slog.Debug("connection closed", "id", c.id, "open", open)
	}
	return err
}
