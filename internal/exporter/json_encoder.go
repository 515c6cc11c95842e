package exporter

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONEncoder writes one JSON object per line (JSON Lines). Column names
// become object keys; no header line is emitted.
type JSONEncoder struct {
	w       io.Writer
	columns []string
	err     error
}

func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{w: w}
}

func (e *JSONEncoder) WriteHeader(columns []string) error {
	e.columns = columns
	return nil
}

func (e *JSONEncoder) WriteRow(values []any) error {
	if e.err != nil {
		return e.err
	}

	obj := make(map[string]any, len(values))
	for i, v := range values {
		name := fmt.Sprintf("column_%d", i)
		if i < len(e.columns) {
			name = e.columns[i]
		}
		// Drivers hand strings back as []byte; encode them as text, not
		// base64.
		if b, ok := v.([]byte); ok {
			obj[name] = string(b)
		} else {
			obj[name] = v
		}
	}

	data, err := json.Marshal(obj)
	if err != nil {
		e.err = err
		return err
	}
	if _, err := e.w.Write(append(data, '\n')); err != nil {
		e.err = err
		return err
	}
	return nil
}

func (e *JSONEncoder) Flush() error { return nil }

func (e *JSONEncoder) Error() error { return e.err }

func (e *JSONEncoder) Close() error { return nil }
