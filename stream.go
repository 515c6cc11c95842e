package fluxdbc

import "context"

// RowStream iterates the projected rows of a consumed result, one row per
// Next call, in result order:
//
//	stream, err := result.Map(mapper)
//	if err != nil { ... }
//	defer stream.Close(ctx)
//	for stream.Next(ctx) {
//		use(stream.Value())
//	}
//	if err := stream.Err(); err != nil { ... }
//
// The underlying cursor is closed automatically when the stream ends or
// fails; Close exists for abandoning a stream early. A RowStream is not safe
// for concurrent use.
type RowStream struct {
	cursor Cursor
	fn     RowMapper
	meta   *RowMetadata

	val          any
	err          error
	done         bool
	cursorClosed bool
}

// Metadata describes the stream's columns. It is available before the first
// Next and remains valid after the stream ends.
func (s *RowStream) Metadata() *RowMetadata { return s.meta }

// Next advances to the next projected row. It returns false at the end of
// the stream, after a failure, or when ctx ends; Err tells those apart.
func (s *RowStream) Next(ctx context.Context) bool {
	if s.done {
		return false
	}
	ok, err := s.cursor.Next(ctx)
	if err != nil {
		s.finish(err)
		return false
	}
	if !ok {
		s.finish(nil)
		return false
	}

	// Each row gets its own handle so one retained from an earlier mapper
	// call stays released for good.
	row := &streamRow{meta: s.meta, values: s.cursor.Values(), valid: true}
	v, err := s.fn(row, s.meta)
	row.valid = false
	if err != nil {
		s.finish(err)
		return false
	}
	s.val = v
	return true
}

// Value returns the projection of the current row. It is only meaningful
// after a Next call that returned true.
func (s *RowStream) Value() any { return s.val }

// Err returns the error that stopped the stream, or nil after a clean end.
func (s *RowStream) Err() error { return s.err }

// Close abandons the stream and releases the cursor. It is idempotent and
// safe to call at any point.
func (s *RowStream) Close(ctx context.Context) error {
	s.done = true
	s.val = nil
	if s.cursor == nil || s.cursorClosed {
		return nil
	}
	s.cursorClosed = true
	return s.cursor.Close(ctx)
}

// Collect drains the stream into a slice. It is a convenience for small
// results; large results should be iterated row by row.
func (s *RowStream) Collect(ctx context.Context) ([]any, error) {
	var out []any
	for s.Next(ctx) {
		out = append(out, s.Value())
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// finish ends the stream, recording err and releasing the cursor. A close
// failure only surfaces when nothing else went wrong first.
func (s *RowStream) finish(err error) {
	s.done = true
	s.err = err
	s.val = nil
	if s.cursor != nil && !s.cursorClosed {
		s.cursorClosed = true
		if cerr := s.cursor.Close(context.Background()); cerr != nil && s.err == nil {
			s.err = cerr
		}
	}
}
