package mongo

import (
	"context"
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"fluxdbc"
)

var documentColumns = []fluxdbc.ColumnMetadata{
	{Name: "document", DatabaseTypeName: "JSON"},
}

// docCursor streams find results as one JSON document per row.
type docCursor struct {
	cur  *mongo.Cursor
	vals []any
}

func (c *docCursor) Columns() []fluxdbc.ColumnMetadata { return documentColumns }

func (c *docCursor) Next(ctx context.Context) (bool, error) {
	if !c.cur.Next(ctx) {
		return false, c.cur.Err()
	}
	var doc bson.M
	if err := c.cur.Decode(&doc); err != nil {
		return false, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return false, err
	}
	c.vals = []any{string(data)}
	return true, nil
}

func (c *docCursor) Values() []any { return c.vals }

func (c *docCursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}

// memCursor plays back rows the driver already holds in memory; server
// replies like counts are materialized before they reach the cursor anyway.
type memCursor struct {
	cols []fluxdbc.ColumnMetadata
	rows [][]any
	pos  int
	vals []any
}

func (c *memCursor) Columns() []fluxdbc.ColumnMetadata { return c.cols }

func (c *memCursor) Next(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if c.pos >= len(c.rows) {
		return false, nil
	}
	c.vals = c.rows[c.pos]
	c.pos++
	return true, nil
}

func (c *memCursor) Values() []any { return c.vals }

func (c *memCursor) Close(ctx context.Context) error { return nil }
