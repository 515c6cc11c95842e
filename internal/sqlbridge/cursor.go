package sqlbridge

import (
	"context"
	"database/sql"
	"fmt"

	"fluxdbc"
)

// cursor adapts *sql.Rows to the fluxdbc cursor contract. The scan targets
// are allocated once and reused for every row; consumers copy what they
// keep, which the row mapper contract already demands.
type cursor struct {
	rows   *sql.Rows
	cols   []fluxdbc.ColumnMetadata
	values []any
	scan   []any
}

func newCursor(rows *sql.Rows) (*cursor, error) {
	names, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlbridge: read columns: %w", err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlbridge: read column types: %w", err)
	}

	cols := make([]fluxdbc.ColumnMetadata, len(names))
	for i, name := range names {
		cols[i] = fluxdbc.ColumnMetadata{Name: name}
		if i < len(types) && types[i] != nil {
			cols[i].DatabaseTypeName = types[i].DatabaseTypeName()
			if nullable, ok := types[i].Nullable(); ok {
				cols[i].Nullable = nullable
			}
		}
	}

	values := make([]any, len(names))
	scan := make([]any, len(names))
	for i := range values {
		scan[i] = &values[i]
	}
	return &cursor{rows: rows, cols: cols, values: values, scan: scan}, nil
}

func (c *cursor) Columns() []fluxdbc.ColumnMetadata { return c.cols }

func (c *cursor) Next(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !c.rows.Next() {
		return false, c.rows.Err()
	}
	if err := c.rows.Scan(c.scan...); err != nil {
		return false, fmt.Errorf("sqlbridge: scan row: %w", err)
	}
	return true, nil
}

func (c *cursor) Values() []any { return c.values }

func (c *cursor) Close(ctx context.Context) error {
	return c.rows.Close()
}
