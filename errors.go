package fluxdbc

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrConnectionClosed is returned by operations invoked on a closed connection.
	ErrConnectionClosed = errors.New("fluxdbc: connection is closed")

	// ErrResultConsumed is returned when a result is consumed a second time.
	ErrResultConsumed = errors.New("fluxdbc: result already consumed")

	// ErrRowReleased is returned when a row handle is accessed outside its
	// mapping callback.
	ErrRowReleased = errors.New("fluxdbc: row accessed after release")

	// ErrNilMapper is returned by Result.Map when the mapping function is nil.
	ErrNilMapper = errors.New("fluxdbc: nil row mapper")

	// ErrNoTransaction is returned by Commit and Rollback when no transaction
	// is in progress.
	ErrNoTransaction = errors.New("fluxdbc: no transaction in progress")

	// ErrTransactionActive is returned by Begin when a transaction is already
	// in progress.
	ErrTransactionActive = errors.New("fluxdbc: transaction already in progress")
)

// NoDriverError is returned by discovery when no registered driver supports
// the given options. Requested holds a redacted rendering of the options and
// Known lists the names of the registered drivers.
type NoDriverError struct {
	Requested string
	Known     []string
}

func (e *NoDriverError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("fluxdbc: no driver supports %s (no drivers registered, did you forget to import one?)", e.Requested)
	}
	known := append([]string(nil), e.Known...)
	sort.Strings(known)
	return fmt.Sprintf("fluxdbc: no driver supports %s (registered: %s)", e.Requested, strings.Join(known, ", "))
}

// AmbiguousDriverError is returned by discovery when more than one registered
// driver claims support for the given options.
type AmbiguousDriverError struct {
	Requested string
	Drivers   []string
}

func (e *AmbiguousDriverError) Error() string {
	names := append([]string(nil), e.Drivers...)
	sort.Strings(names)
	return fmt.Sprintf("fluxdbc: multiple drivers support %s: %s", e.Requested, strings.Join(names, ", "))
}
