package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/couchcryptid/aq-export-service/internal/domain"
)

// ErrMalformedRecord marks a record that cannot be serialized.
var ErrMalformedRecord = errors.New("malformed record")

// CSVEncoder streams flattened records as CSV rows under a fixed header.
// Rows are buffered only up to the csv.Writer's internal buffer.
type CSVEncoder struct {
	w *csv.Writer
}

// NewCSVEncoder wraps w.
func NewCSVEncoder(w io.Writer) *CSVEncoder {
	return &CSVEncoder{w: csv.NewWriter(w)}
}

// WriteHeader writes the column names row.
func (e *CSVEncoder) WriteHeader() error {
	return e.w.Write(domain.Columns)
}

// Encode writes one record. Validation failures wrap ErrMalformedRecord;
// any other error comes from the underlying writer.
func (e *CSVEncoder) Encode(rec domain.FlatRecord) error {
	cells, err := rec.Cells()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return e.w.Write(cells)
}

// Flush writes any buffered rows to the underlying writer.
func (e *CSVEncoder) Flush() error {
	e.w.Flush()
	return e.w.Error()
}
