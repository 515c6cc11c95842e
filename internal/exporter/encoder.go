package exporter

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// RowEncoder writes tabular results in one output format.
type RowEncoder interface {
	// WriteHeader writes the column names. Call it once, before any row.
	WriteHeader(columns []string) error

	// WriteRow writes one row; len(values) matches the header.
	WriteRow(values []any) error

	// Flush pushes buffered data to the underlying writer.
	Flush() error

	// Error returns the first error seen while encoding.
	Error() error

	// Close finishes the output. Formats with trailers (xlsx, pdf) write
	// them here.
	io.Closer
}

// New picks an encoder for a format name. Recognized: csv (the default when
// empty), json/jsonl, excel/xlsx, pdf.
func New(format string, w io.Writer) (RowEncoder, error) {
	switch strings.ToLower(format) {
	case "", "csv":
		return NewCSVEncoder(w), nil
	case "json", "jsonl":
		return NewJSONEncoder(w), nil
	case "excel", "xlsx":
		return NewExcelEncoder(w), nil
	case "pdf":
		return NewPDFEncoder(w), nil
	default:
		return nil, fmt.Errorf("exporter: unknown format %q", format)
	}
}

// Ext returns the file extension for a format name.
func Ext(format string) string {
	switch strings.ToLower(format) {
	case "json", "jsonl":
		return "jsonl"
	case "excel", "xlsx":
		return "xlsx"
	case "pdf":
		return "pdf"
	default:
		return "csv"
	}
}

// toString renders a driver value for text formats. nil becomes NULL;
// timestamps use a fixed layout so output is diffable.
func toString(val any) string {
	switch v := val.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	case string:
		return v
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(v)
	}
}

// sanitize defuses spreadsheet formula injection: cells starting with
// = + - or @ get a leading single quote.
func sanitize(s string) string {
	if len(s) > 0 {
		switch s[0] {
		case '=', '+', '-', '@':
			return "'" + s
		}
	}
	return s
}
