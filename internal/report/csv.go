package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/nao1215/breachscan/internal/model"
)

// CSVWriter writes the header row followed by one record per row.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the rows as CSV.
func (w *CSVWriter) Write(rows []model.ReportRow) (int, error) {
	cw := &countingWriter{w: w.output}
	enc := csv.NewWriter(cw)

	if err := enc.Write(model.Columns); err != nil {
		return cw.n, err
	}
	for _, row := range rows {
		if err := enc.Write(row.Values()); err != nil {
			return cw.n, err
		}
	}
	enc.Flush()
	return cw.n, enc.Error()
}

// ReadCSV reads a CSV artifact written by CSVWriter back into rows.
// The header row must match model.Columns.
func ReadCSV(path string) ([]model.ReportRow, error) {
	f, err := os.Open(path) //nolint:gosec // Path is an artifact produced by this program or given by the user
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return DecodeCSV(f)
}

// DecodeCSV reads report rows from r. See ReadCSV.
func DecodeCSV(r io.Reader) ([]model.ReportRow, error) {
	dec := csv.NewReader(r)
	dec.FieldsPerRecord = len(model.Columns)

	header, err := dec.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrInvalidHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if !slices.Equal(header, model.Columns) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, header)
	}

	rows := make([]model.ReportRow, 0)
	for {
		record, err := dec.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		row, err := model.RowFromValues(record)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}
