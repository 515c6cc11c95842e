package exporter

import (
	"context"
	"fmt"
	"time"

	"fluxdbc"
)

// Stats reports what an export did.
type Stats struct {
	Rows     int64
	Duration time.Duration
}

// Stream executes query on conn and feeds every row through enc: header
// first, then each projected row, then a flush. Values are copied out of the
// row inside the projection, so the encoder may keep them; byte slices are
// duplicated because drivers reuse their buffers between rows.
func Stream(ctx context.Context, conn fluxdbc.Connection, query string, enc RowEncoder) (*Stats, error) {
	start := time.Now()

	res, err := conn.Execute(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}

	stream, err := res.Map(func(row fluxdbc.Row, meta *fluxdbc.RowMetadata) (any, error) {
		values := make([]any, meta.Len())
		for i := range values {
			v, err := row.Get(i)
			if err != nil {
				return nil, err
			}
			if b, ok := v.([]byte); ok {
				v = append([]byte(nil), b...)
			}
			values[i] = v
		}
		return values, nil
	})
	if err != nil {
		return nil, fmt.Errorf("project rows: %w", err)
	}
	defer stream.Close(context.Background())

	if err := enc.WriteHeader(stream.Metadata().ColumnNames()); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	var rows int64
	for stream.Next(ctx) {
		if err := enc.WriteRow(stream.Value().([]any)); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
		rows++
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}
	if err := enc.Error(); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	return &Stats{Rows: rows, Duration: time.Since(start)}, nil
}
