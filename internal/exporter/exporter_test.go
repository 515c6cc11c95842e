package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"fluxdbc"
	"fluxdbc/internal/drivertest"
)

var testCols = []fluxdbc.ColumnMetadata{
	{Name: "id", DatabaseTypeName: "BIGINT"},
	{Name: "name", DatabaseTypeName: "VARCHAR"},
}

func TestStreamCSV(t *testing.T) {
	conn := drivertest.NewQueryConn(testCols, [][]any{
		{int64(1), "Ada"},
		{int64(2), []byte("=SUM(A1:A9)")},
		{int64(3), nil},
	})

	var buf bytes.Buffer
	stats, err := Stream(context.Background(), conn, "SELECT id, name FROM users", NewCSVEncoder(&buf))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if stats.Rows != 3 {
		t.Errorf("Rows = %d, want 3", stats.Rows)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header + 3 rows:\n%s", len(lines), buf.String())
	}
	if lines[0] != "id,name" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[2], "'=SUM(A1:A9)") {
		t.Errorf("formula cell not sanitized: %q", lines[2])
	}
	if lines[3] != "3,NULL" {
		t.Errorf("null row = %q, want 3,NULL", lines[3])
	}
}

func TestStreamJSONLines(t *testing.T) {
	conn := drivertest.NewQueryConn(testCols, [][]any{
		{int64(7), []byte("Grace")},
	})

	var buf bytes.Buffer
	stats, err := Stream(context.Background(), conn, "SELECT id, name FROM users", NewJSONEncoder(&buf))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if stats.Rows != 1 {
		t.Errorf("Rows = %d, want 1", stats.Rows)
	}

	var obj map[string]any
	if err := json.Unmarshal(buf.Bytes(), &obj); err != nil {
		t.Fatalf("output is not a JSON object: %v\n%s", err, buf.String())
	}
	if obj["name"] != "Grace" {
		t.Errorf("name = %v, want Grace (bytes should encode as text)", obj["name"])
	}
	if obj["id"] != float64(7) {
		t.Errorf("id = %v, want 7", obj["id"])
	}
}

func TestStreamExcel(t *testing.T) {
	conn := drivertest.NewQueryConn(testCols, [][]any{
		{int64(1), "Ada"},
		{int64(2), "Grace"},
	})

	var buf bytes.Buffer
	enc := NewExcelEncoder(&buf)
	stats, err := Stream(context.Background(), conn, "SELECT id, name FROM users", enc)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if stats.Rows != 2 {
		t.Errorf("Rows = %d, want 2", stats.Rows)
	}
	// xlsx files are zip archives.
	if buf.Len() == 0 || buf.Bytes()[0] != 'P' || buf.Bytes()[1] != 'K' {
		t.Errorf("output does not look like a zip archive (%d bytes)", buf.Len())
	}
}

func TestStreamPDF(t *testing.T) {
	conn := drivertest.NewQueryConn(testCols, [][]any{
		{int64(1), "Ada"},
	})

	var buf bytes.Buffer
	enc := NewPDFEncoder(&buf)
	if _, err := Stream(context.Background(), conn, "SELECT id, name FROM users", enc); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Errorf("output does not start with %%PDF (%d bytes)", buf.Len())
	}
}

func TestStreamFlushThenCloseWritesOnce(t *testing.T) {
	conn := drivertest.NewQueryConn(testCols, [][]any{{int64(1), "Ada"}})

	var buf bytes.Buffer
	enc := NewExcelEncoder(&buf)
	if _, err := Stream(context.Background(), conn, "q", enc); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	size := buf.Len()
	if err := enc.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if buf.Len() != size {
		t.Errorf("output grew from %d to %d bytes after Flush+Close", size, buf.Len())
	}
}

func TestStreamCopiesDriverBuffers(t *testing.T) {
	// The cursor reuses one buffer across rows, like database/sql drivers do.
	buf := []byte("first")
	cursor := &reusingCursor{buf: buf, contents: []string{"first", "other"}}
	conn := &drivertest.Conn{
		ExecuteFn: func(context.Context, string) (*fluxdbc.Result, error) {
			return fluxdbc.NewQueryResult(cursor), nil
		},
	}

	var out bytes.Buffer
	if _, err := Stream(context.Background(), conn, "q", NewCSVEncoder(&out)); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 || lines[1] != "first" || lines[2] != "other" {
		t.Errorf("rows = %q, want first then other", lines[1:])
	}
}

// reusingCursor overwrites the same byte slice for every row.
type reusingCursor struct {
	buf      []byte
	contents []string
	pos      int
}

func (c *reusingCursor) Columns() []fluxdbc.ColumnMetadata {
	return []fluxdbc.ColumnMetadata{{Name: "v", DatabaseTypeName: "VARCHAR"}}
}

func (c *reusingCursor) Next(ctx context.Context) (bool, error) {
	if c.pos >= len(c.contents) {
		return false, nil
	}
	copy(c.buf, c.contents[c.pos])
	c.pos++
	return true, nil
}

func (c *reusingCursor) Values() []any { return []any{c.buf} }

func (c *reusingCursor) Close(ctx context.Context) error { return nil }

func TestStreamEncoderFailureStops(t *testing.T) {
	cursor := &drivertest.ScriptedCursor{
		Cols: testCols,
		Rows: [][]any{{int64(1), "Ada"}, {int64(2), "Grace"}},
	}
	conn := &drivertest.Conn{
		ExecuteFn: func(context.Context, string) (*fluxdbc.Result, error) {
			return fluxdbc.NewQueryResult(cursor), nil
		},
	}

	failing := &failAfterEncoder{failAt: 1}
	_, err := Stream(context.Background(), conn, "q", failing)
	if err == nil {
		t.Fatal("expected encoder failure to surface")
	}
	if cursor.CloseCalls.Load() == 0 {
		t.Error("cursor not closed after encoder failure")
	}
}

// failAfterEncoder fails on the nth WriteRow.
type failAfterEncoder struct {
	rows   int
	failAt int
}

func (e *failAfterEncoder) WriteHeader(columns []string) error { return nil }

func (e *failAfterEncoder) WriteRow(values []any) error {
	if e.rows == e.failAt {
		return errors.New("disk full")
	}
	e.rows++
	return nil
}

func (e *failAfterEncoder) Flush() error { return nil }
func (e *failAfterEncoder) Error() error { return nil }
func (e *failAfterEncoder) Close() error { return nil }

func TestStreamUpdateResultIsEmpty(t *testing.T) {
	conn := &drivertest.Conn{} // default Execute reports an update of 0 rows
	var buf bytes.Buffer
	stats, err := Stream(context.Background(), conn, "DELETE FROM users", NewCSVEncoder(&buf))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if stats.Rows != 0 {
		t.Errorf("Rows = %d, want 0", stats.Rows)
	}
}

func TestNewEncoderFormats(t *testing.T) {
	var buf bytes.Buffer
	for _, format := range []string{"", "csv", "json", "jsonl", "excel", "xlsx", "pdf"} {
		if _, err := New(format, &buf); err != nil {
			t.Errorf("New(%q): %v", format, err)
		}
	}
	if _, err := New("parquet", &buf); err == nil {
		t.Error("New(parquet) should fail")
	}
}

func TestExt(t *testing.T) {
	tests := map[string]string{
		"":      "csv",
		"csv":   "csv",
		"json":  "jsonl",
		"excel": "xlsx",
		"xlsx":  "xlsx",
		"pdf":   "pdf",
	}
	for format, want := range tests {
		if got := Ext(format); got != want {
			t.Errorf("Ext(%q) = %q, want %q", format, got, want)
		}
	}
}
