package exporter

import (
	"io"

	"github.com/go-pdf/fpdf"
)

// PDFEncoder writes a plain grid, one cell per value, on landscape A4.
// It holds the whole document in memory; prefer csv or jsonl for large
// exports.
type PDFEncoder struct {
	pdf     *fpdf.Fpdf
	w       io.Writer
	flushed bool
	err     error
}

func NewPDFEncoder(w io.Writer) *PDFEncoder {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 10)
	pdf.AddPage()
	return &PDFEncoder{pdf: pdf, w: w}
}

func (e *PDFEncoder) WriteHeader(columns []string) error {
	if e.err != nil {
		return e.err
	}
	e.pdf.SetFont("Arial", "B", 10)
	width := e.cellWidth(len(columns))
	for _, col := range columns {
		e.pdf.CellFormat(width, 7, col, "1", 0, "C", false, 0, "")
	}
	e.pdf.Ln(-1)
	e.pdf.SetFont("Arial", "", 10)
	return nil
}

func (e *PDFEncoder) WriteRow(values []any) error {
	if e.err != nil {
		return e.err
	}
	width := e.cellWidth(len(values))
	for _, v := range values {
		e.pdf.CellFormat(width, 7, toString(v), "1", 0, "L", false, 0, "")
	}
	e.pdf.Ln(-1)
	return nil
}

// cellWidth splits the printable width evenly across n columns.
func (e *PDFEncoder) cellWidth(n int) float64 {
	pageWidth, _ := e.pdf.GetPageSize()
	left, _, right, _ := e.pdf.GetMargins()
	if n < 1 {
		n = 1
	}
	return (pageWidth - left - right) / float64(n)
}

// Flush renders the document. Like the excel encoder it writes once.
func (e *PDFEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if e.flushed {
		return nil
	}
	e.flushed = true
	if err := e.pdf.Output(e.w); err != nil {
		e.err = err
		return err
	}
	return nil
}

func (e *PDFEncoder) Error() error {
	return e.err
}

func (e *PDFEncoder) Close() error {
	return e.Flush()
}
