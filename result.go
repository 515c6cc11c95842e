package fluxdbc

import (
	"context"
	"sync"
)

// Cursor is the driver-side source of rows behind a query result. Drivers
// implement it; applications consume rows through Result.Map instead.
//
// Values returns the current row's values. The returned slice may be reused
// between calls to Next, so consumers must copy anything they keep.
type Cursor interface {
	// Columns describes the result columns. It must be callable before the
	// first Next.
	Columns() []ColumnMetadata

	// Next advances to the next row. It returns false at the end of the
	// result or on error, and must return promptly when ctx ends.
	Next(ctx context.Context) (bool, error)

	// Values returns the current row's values.
	Values() []any

	// Close releases the cursor. It must be idempotent.
	Close(ctx context.Context) error
}

// RowMapper projects one row into a value. The row and metadata are valid
// only until the mapper returns; values that outlive the call must be copied
// out of the row, not the Row itself retained.
type RowMapper func(row Row, meta *RowMetadata) (any, error)

// Result is the outcome of executing a statement. It is consumed exactly
// once, through either RowsUpdated or Map; whichever is called first claims
// the result and every later call fails with ErrResultConsumed.
type Result struct {
	mu       sync.Mutex
	consumed bool

	count  int64
	cursor Cursor
}

// NewUpdateResult builds a result carrying an update count. Drivers return it
// from statements that do not produce rows.
func NewUpdateResult(count int64) *Result {
	return &Result{count: count}
}

// NewQueryResult builds a result over a driver cursor. The result takes
// ownership of the cursor and closes it when consumption ends.
func NewQueryResult(cursor Cursor) *Result {
	if cursor == nil {
		panic("fluxdbc: nil cursor")
	}
	return &Result{cursor: cursor}
}

// claim marks the result consumed. Only the first caller succeeds.
func (r *Result) claim() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consumed {
		return ErrResultConsumed
	}
	r.consumed = true
	return nil
}

// RowsUpdated consumes the result and returns the number of rows the
// statement changed. Zero means the statement changed nothing; statements
// that produce rows instead have their rows discarded and report zero.
func (r *Result) RowsUpdated(ctx context.Context) (int64, error) {
	if err := r.claim(); err != nil {
		return 0, err
	}
	if r.cursor != nil {
		return 0, r.cursor.Close(ctx)
	}
	return r.count, nil
}

// Map consumes the result and returns a stream of projected rows. The mapper
// runs once per row as the stream advances; with no rows it never runs and
// the stream is just empty.
//
// A nil mapper fails with ErrNilMapper and does not consume the result.
func (r *Result) Map(fn RowMapper) (*RowStream, error) {
	if fn == nil {
		return nil, ErrNilMapper
	}
	if err := r.claim(); err != nil {
		return nil, err
	}
	if r.cursor == nil {
		return &RowStream{meta: NewRowMetadata(nil), done: true}, nil
	}
	return &RowStream{
		cursor: r.cursor,
		fn:     fn,
		meta:   NewRowMetadata(r.cursor.Columns()),
	}, nil
}
