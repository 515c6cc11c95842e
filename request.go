package fluxdbc

import (
	"context"
	"errors"
	"sync"
)

// ConnectionRequest is a connection that has been asked for but not yet
// established. Create returns one without doing any work; the dial starts
// when Await is first called and can be abandoned at any point with Cancel.
//
// A request settles exactly once, with either a connection or an error, and
// the outcome is remembered: concurrent and repeated Await calls all observe
// the same result. Requests are intended for a single consumer; when several
// goroutines await one, they share the one connection.
type ConnectionRequest struct {
	dial DialFunc

	mu        sync.Mutex
	requested bool
	canceled  bool
	settled   bool
	delivered bool
	abort     context.CancelFunc
	conn      Connection
	err       error
	done      chan struct{}
}

// NewConnectionRequest wraps a dial into a request. Drivers call this from
// ConnectionFactory.Create; the dial itself stays untouched until the request
// is awaited.
func NewConnectionRequest(dial DialFunc) *ConnectionRequest {
	if dial == nil {
		panic("fluxdbc: nil dial func")
	}
	return &ConnectionRequest{dial: dial, done: make(chan struct{})}
}

// Await starts the dial if it has not started and blocks until the request
// settles or ctx ends. When ctx ends first, the request is canceled so the
// in-flight dial cannot leak a connection nobody will receive.
//
// Await never dials after Cancel; a request canceled before first demand
// settles immediately with context.Canceled.
func (r *ConnectionRequest) Await(ctx context.Context) (Connection, error) {
	r.mu.Lock()
	if !r.requested && !r.settled {
		if r.canceled {
			r.settleLocked(nil, context.Canceled)
		} else {
			r.requested = true
			dialCtx, abort := context.WithCancel(ctx)
			r.abort = abort
			go r.run(dialCtx)
		}
	}
	r.mu.Unlock()

	select {
	case <-r.done:
	case <-ctx.Done():
		r.Cancel()
		return nil, ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		r.delivered = true
	}
	return r.conn, r.err
}

// Done returns a channel closed when the request has settled. A request
// settles after its dial finishes or after Cancel; an unawaited, uncanceled
// request never settles.
func (r *ConnectionRequest) Done() <-chan struct{} { return r.done }

// Cancel abandons the request. Before first demand it prevents the dial from
// ever running; during the dial it interrupts it; a connection that completes
// anyway is closed rather than leaked. After the connection has been
// delivered Cancel does nothing: the caller owns it.
//
// Cancel is idempotent and safe to call from any goroutine.
func (r *ConnectionRequest) Cancel() {
	r.mu.Lock()
	r.canceled = true
	if r.abort != nil {
		r.abort()
	}
	if !r.settled {
		if !r.requested {
			r.settleLocked(nil, context.Canceled)
		}
		// Otherwise the dial goroutine observes the abort and settles.
		r.mu.Unlock()
		return
	}
	if r.conn != nil && !r.delivered {
		// Settled with a connection nobody received.
		conn := r.conn
		r.conn = nil
		r.err = context.Canceled
		r.mu.Unlock()
		discard(conn)
		return
	}
	r.mu.Unlock()
}

// run executes the dial and settles the request with its outcome. It is the
// only writer of the outcome for a requested request.
func (r *ConnectionRequest) run(ctx context.Context) {
	conn, err := r.dial(ctx)
	if err != nil && conn != nil {
		discard(conn)
		conn = nil
	}
	if err == nil && conn == nil {
		err = errors.New("fluxdbc: dial returned neither connection nor error")
	}

	r.mu.Lock()
	if r.settled {
		r.mu.Unlock()
		// Canceled while dialing, and the dial still produced a connection.
		if conn != nil {
			discard(conn)
		}
		return
	}
	if conn != nil && (r.canceled || ctx.Err() != nil) {
		// The dial ignored the abort. Honor the cancellation anyway.
		r.settleLocked(nil, context.Canceled)
		r.mu.Unlock()
		discard(conn)
		return
	}
	r.settleLocked(conn, err)
	r.mu.Unlock()
}

// settleLocked records the outcome and wakes every waiter. Callers hold mu.
func (r *ConnectionRequest) settleLocked(conn Connection, err error) {
	r.settled = true
	r.conn = conn
	r.err = err
	close(r.done)
}

// discard closes a connection that will never reach a caller.
func discard(conn Connection) {
	_ = conn.Close(context.Background())
}
