package exporter

import (
	"errors"
	"io"

	"github.com/xuri/excelize/v2"
)

// excelMaxRows is the xlsx format's hard row limit per sheet.
const excelMaxRows = 1048576

// ExcelEncoder writes an .xlsx workbook through excelize's StreamWriter, so
// row data goes to disk-backed temp storage instead of accumulating in
// memory.
type ExcelEncoder struct {
	f       *excelize.File
	sw      *excelize.StreamWriter
	w       io.Writer
	rowIdx  int
	flushed bool
	err     error
}

func NewExcelEncoder(w io.Writer) *ExcelEncoder {
	f := excelize.NewFile()
	sw, err := f.NewStreamWriter("Sheet1")
	if err != nil {
		return &ExcelEncoder{err: err}
	}
	return &ExcelEncoder{f: f, sw: sw, w: w, rowIdx: 1}
}

func (e *ExcelEncoder) WriteHeader(columns []string) error {
	if e.err != nil {
		return e.err
	}
	row := make([]any, len(columns))
	for i, col := range columns {
		row[i] = col
	}
	return e.setRow(row)
}

func (e *ExcelEncoder) WriteRow(values []any) error {
	if e.err != nil {
		return e.err
	}
	if e.rowIdx > excelMaxRows {
		e.err = errors.New("exporter: excel row limit exceeded")
		return e.err
	}

	row := make([]any, len(values))
	for i, v := range values {
		switch val := v.(type) {
		case []byte:
			row[i] = sanitize(string(val))
		case string:
			row[i] = sanitize(val)
		case nil:
			row[i] = "NULL"
		default:
			// Numbers and times go in natively; excelize types the cell.
			row[i] = v
		}
	}
	return e.setRow(row)
}

func (e *ExcelEncoder) setRow(row []any) error {
	cell, err := excelize.CoordinatesToCellName(1, e.rowIdx)
	if err != nil {
		e.err = err
		return err
	}
	if err := e.sw.SetRow(cell, row); err != nil {
		e.err = err
		return err
	}
	e.rowIdx++
	return nil
}

// Flush assembles the workbook. It writes once; later flushes are no-ops so
// a Flush followed by Close cannot duplicate the archive.
func (e *ExcelEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if e.flushed {
		return nil
	}
	e.flushed = true
	if err := e.sw.Flush(); err != nil {
		e.err = err
		return err
	}
	if err := e.f.Write(e.w); err != nil {
		e.err = err
		return err
	}
	return nil
}

func (e *ExcelEncoder) Error() error {
	return e.err
}

func (e *ExcelEncoder) Close() error {
	if e.f != nil {
		return e.f.Close()
	}
	return nil
}
