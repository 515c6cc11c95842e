package pgx

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"fluxdbc"
)

// cursor adapts pgx.Rows to the fluxdbc cursor contract.
type cursor struct {
	rows pgx.Rows
	cols []fluxdbc.ColumnMetadata
	vals []any
}

func newCursor(conn *pgx.Conn, rows pgx.Rows) *cursor {
	fds := rows.FieldDescriptions()
	cols := make([]fluxdbc.ColumnMetadata, len(fds))
	for i, fd := range fds {
		cols[i] = fluxdbc.ColumnMetadata{Name: fd.Name}
		if t, ok := conn.TypeMap().TypeForOID(fd.DataTypeOID); ok {
			cols[i].DatabaseTypeName = strings.ToUpper(t.Name)
		}
	}
	return &cursor{rows: rows, cols: cols}
}

func (c *cursor) Columns() []fluxdbc.ColumnMetadata { return c.cols }

func (c *cursor) Next(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !c.rows.Next() {
		return false, c.rows.Err()
	}
	vals, err := c.rows.Values()
	if err != nil {
		return false, err
	}
	c.vals = vals
	return true, nil
}

func (c *cursor) Values() []any { return c.vals }

func (c *cursor) Close(ctx context.Context) error {
	c.rows.Close()
	return nil
}
