package fluxdbc

import "context"

// ConnectionFactory mints connections to one configured database. Factories
// are cheap, hold no open resources and are safe for concurrent use; all real
// work is deferred into the requests they create.
type ConnectionFactory interface {
	// Create prepares a new connection request. It performs no I/O; nothing
	// happens until the request is awaited.
	Create() *ConnectionRequest

	// Metadata describes the factory.
	Metadata() *FactoryMetadata
}

// FactoryMetadata describes a connection factory.
type FactoryMetadata struct {
	name string
}

// NewFactoryMetadata builds factory metadata under the given name, typically
// the driver's registration name.
func NewFactoryMetadata(name string) *FactoryMetadata {
	return &FactoryMetadata{name: name}
}

// Name returns the factory name.
func (m *FactoryMetadata) Name() string { return m.name }

// A FactoryWrapper decorates another factory, adding behavior such as
// connection limits or metrics around it.
type FactoryWrapper interface {
	ConnectionFactory

	// Unwrap returns the factory being decorated.
	Unwrap() ConnectionFactory
}

// UnwrapFactory walks a chain of factory wrappers and returns the innermost
// factory. A factory that wraps nothing is returned as is.
func UnwrapFactory(f ConnectionFactory) ConnectionFactory {
	for {
		w, ok := f.(FactoryWrapper)
		if !ok {
			return f
		}
		inner := w.Unwrap()
		if inner == nil {
			return f
		}
		f = inner
	}
}

// DialFunc establishes one connection. Drivers hand one to
// NewConnectionRequest; it runs at most once, when the request is first
// awaited, and must honor ctx cancellation by releasing anything it
// acquired before returning.
type DialFunc func(ctx context.Context) (Connection, error)
