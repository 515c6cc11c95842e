package fluxdbc

import (
	"sort"
	"sync"
)

// Driver is implemented by database drivers. Driver packages register an
// instance with Register from init, so importing a driver for its side
// effects is enough to make it discoverable:
//
//	import _ "fluxdbc/driver/postgres"
type Driver interface {
	// Name returns the driver's registration name, such as "mysql".
	Name() string

	// Supports reports whether this driver can serve the given options. It
	// must be a pure inspection: no I/O, no state, and the same answer for
	// the same options every time.
	Supports(opts *Options) bool

	// NewFactory builds a connection factory for the given options. It
	// validates configuration and fails fast on bad options, but opens no
	// connections.
	NewFactory(opts *Options) (ConnectionFactory, error)
}

// Registry holds registered drivers and matches option bags against them.
// The zero value is not usable; create registries with NewRegistry or use
// the package-level default.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewRegistry returns an empty registry, independent of the package default.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register adds a driver. It panics when the driver is nil, its name is
// empty or the name is already taken; registration happens from init, where
// a broken setup should stop the program.
func (r *Registry) Register(d Driver) {
	if d == nil {
		panic("fluxdbc: Register driver is nil")
	}
	name := d.Name()
	if name == "" {
		panic("fluxdbc: Register driver has empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.drivers[name]; dup {
		panic("fluxdbc: Register called twice for driver " + name)
	}
	r.drivers[name] = d
}

// Drivers returns the registered driver names in sorted order.
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Discover finds the single driver supporting opts and asks it for a
// factory. No match fails with *NoDriverError, several matches with
// *AmbiguousDriverError; both name the candidates, never pick one silently.
//
// Discovery itself has no side effects: drivers are only inspected, and the
// matched driver builds a factory without opening connections.
func (r *Registry) Discover(opts *Options) (ConnectionFactory, error) {
	r.mu.RLock()
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	sort.Strings(names)

	var matched []Driver
	for _, name := range names {
		d := r.drivers[name]
		if d.Supports(opts) {
			matched = append(matched, d)
		}
	}
	r.mu.RUnlock()

	switch len(matched) {
	case 0:
		return nil, &NoDriverError{Requested: opts.String(), Known: names}
	case 1:
		return matched[0].NewFactory(opts)
	default:
		claimed := make([]string, len(matched))
		for i, d := range matched {
			claimed[i] = d.Name()
		}
		return nil, &AmbiguousDriverError{Requested: opts.String(), Drivers: claimed}
	}
}

// defaultRegistry backs the package-level registration and discovery
// functions. Driver packages register here from init.
var defaultRegistry = NewRegistry()

// Register adds a driver to the default registry.
func Register(d Driver) { defaultRegistry.Register(d) }

// Drivers returns the names registered with the default registry.
func Drivers() []string { return defaultRegistry.Drivers() }

// Discover matches opts against the default registry.
func Discover(opts *Options) (ConnectionFactory, error) { return defaultRegistry.Discover(opts) }
