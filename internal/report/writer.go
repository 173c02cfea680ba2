package report

import (
	"fmt"
	"io"

	"github.com/nao1215/breachscan/internal/model"
)

// Writer writes report rows in one output format.
// Implementations write the rows exactly in the order given.
type Writer interface {
	// Write outputs the rows and returns the number of bytes written.
	Write(rows []model.ReportRow) (int, error)
}

// NewWriter returns the file writer for format.
func NewWriter(format model.Format, output io.Writer) (Writer, error) {
	switch format {
	case model.FormatCSV:
		return NewCSVWriter(output), nil
	case model.FormatXLSX:
		return NewXLSXWriter(output), nil
	case model.FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case model.FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// MultiWriter writes the same rows to several Writers, e.g. the terminal
// table and a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the rows to every Writer and stops at the first error.
func (m *MultiWriter) Write(rows []model.ReportRow) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(rows)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// countingWriter counts the bytes passed to an underlying writer. It lets
// writers built on encoders that do not report sizes (encoding/csv)
// satisfy Writer.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
