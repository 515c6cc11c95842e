package fluxdbc

import "context"

// ValidationDepth selects how thoroughly Connection.Validate checks a
// connection.
type ValidationDepth int

const (
	// ValidationLocal checks client-side state only and performs no I/O.
	ValidationLocal ValidationDepth = iota

	// ValidationRemote performs a round trip to the database.
	ValidationRemote
)

func (d ValidationDepth) String() string {
	switch d {
	case ValidationLocal:
		return "local"
	case ValidationRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// IsolationLevel names a transaction isolation level. Drivers map it to the
// closest level their database offers.
type IsolationLevel int

const (
	// IsolationDefault leaves the database's default level in place.
	IsolationDefault IsolationLevel = iota
	IsolationReadUncommitted
	IsolationReadCommitted
	IsolationRepeatableRead
	IsolationSerializable
)

func (l IsolationLevel) String() string {
	switch l {
	case IsolationDefault:
		return "default"
	case IsolationReadUncommitted:
		return "read uncommitted"
	case IsolationReadCommitted:
		return "read committed"
	case IsolationRepeatableRead:
		return "repeatable read"
	case IsolationSerializable:
		return "serializable"
	default:
		return "unknown"
	}
}

// Connection is a single session with a database. Connections are not safe
// for concurrent use; callers must serialize access or hold one connection
// per goroutine.
//
// Every method taking a context stops early when the context ends, but a
// connection abandoned that way is in an unknown state and should be closed.
type Connection interface {
	// Execute runs a single statement and returns its result. The statement
	// reaches the database when Execute is called, not when the result is
	// consumed, but row data may arrive lazily as the result is read.
	Execute(ctx context.Context, query string) (*Result, error)

	// Begin starts a transaction. It fails with ErrTransactionActive when one
	// is already in progress.
	Begin(ctx context.Context) error

	// Commit commits the current transaction. It fails with ErrNoTransaction
	// when none is in progress.
	Commit(ctx context.Context) error

	// Rollback discards the current transaction. It fails with
	// ErrNoTransaction when none is in progress.
	Rollback(ctx context.Context) error

	// SetIsolation selects the isolation level for subsequent transactions.
	SetIsolation(ctx context.Context, level IsolationLevel) error

	// Validate reports whether the connection is still usable at the given
	// depth. It never returns an error; any failure, including a context that
	// ends during a remote check, reports false.
	Validate(ctx context.Context, depth ValidationDepth) bool

	// Close releases the connection. Closing an already-closed connection is
	// a no-op and returns nil.
	Close(ctx context.Context) error

	// Metadata describes the database product this connection talks to.
	Metadata() *ConnectionMetadata
}

// ConnectionMetadata describes the database product behind a connection.
type ConnectionMetadata struct {
	product string
	version string
}

// NewConnectionMetadata builds connection metadata. Version may be empty when
// the driver could not determine it.
func NewConnectionMetadata(product, version string) *ConnectionMetadata {
	return &ConnectionMetadata{product: product, version: version}
}

// ProductName returns the database product name, such as "PostgreSQL".
func (m *ConnectionMetadata) ProductName() string { return m.product }

// Version returns the product version as reported by the database.
func (m *ConnectionMetadata) Version() string { return m.version }
