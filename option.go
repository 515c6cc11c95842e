package fluxdbc

import "time"

// optionKey is the identity of an option: its name plus whether it is
// sensitive. Two options with equal keys are interchangeable no matter where
// they were declared.
type optionKey struct {
	name      string
	sensitive bool
}

// Option is a typed configuration key. The type parameter only exists at
// compile time; identity is the (name, sensitive) pair, so independently
// declared options with the same name and sensitivity compare equal.
//
// Sensitive options carry values such as passwords and keys. Their values are
// redacted from diagnostic output, but remain readable through normal lookup.
type Option[T any] struct {
	key optionKey
}

// NewOption declares a non-sensitive option.
func NewOption[T any](name string) Option[T] {
	if name == "" {
		panic("fluxdbc: option name must not be empty")
	}
	return Option[T]{key: optionKey{name: name}}
}

// NewSensitiveOption declares an option whose value is redacted from
// diagnostic output.
func NewSensitiveOption[T any](name string) Option[T] {
	if name == "" {
		panic("fluxdbc: option name must not be empty")
	}
	return Option[T]{key: optionKey{name: name, sensitive: true}}
}

// Name returns the option name.
func (o Option[T]) Name() string { return o.key.name }

// Sensitive reports whether values bound to this option are redacted from
// diagnostic output.
func (o Option[T]) Sensitive() bool { return o.key.sensitive }

func (o Option[T]) String() string {
	if o.key.sensitive {
		return o.key.name + " (sensitive)"
	}
	return o.key.name
}

// Value binds a value to this option for use with Builder.With.
func (o Option[T]) Value(v T) OptionValue {
	return OptionValue{key: o.key, value: v}
}

// OptionValue is a single option bound to a value. Values are created through
// Option.Value and collected into an Options bag by a Builder.
type OptionValue struct {
	key   optionKey
	value any
}

// Name returns the name of the bound option.
func (v OptionValue) Name() string { return v.key.name }

// Options recognized by most database drivers. Drivers declare their own
// options for anything not covered here; equal names and sensitivity make
// them interchangeable with these.
var (
	// DriverName selects a driver by registration name.
	DriverName = NewOption[string]("driver")

	// Protocol selects a driver-specific transport, such as a unix socket.
	Protocol = NewOption[string]("protocol")

	// Host is the database host name or address.
	Host = NewOption[string]("host")

	// Port is the database port.
	Port = NewOption[int]("port")

	// User is the user to authenticate as.
	User = NewOption[string]("user")

	// Password is the authentication password. It is sensitive and never
	// appears in diagnostic output.
	Password = NewSensitiveOption[string]("password")

	// Database is the initial database, schema or keyspace.
	Database = NewOption[string]("database")

	// SSL requests a TLS-secured connection.
	SSL = NewOption[bool]("ssl")

	// ConnectTimeout bounds how long establishing a single connection may take.
	ConnectTimeout = NewOption[time.Duration]("connectTimeout")
)
