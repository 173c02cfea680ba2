package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/breachscan/internal/model"
)

// SheetName is the name of the worksheet holding the report.
const SheetName = "Breaches"

// columnWidths are the XLSX column widths, in model.Columns order.
var columnWidths = []float64{32, 22, 22, 22, 12, 18, 48, 10, 10}

// XLSXWriter writes the rows to a single-sheet workbook with a bold,
// frozen header row.
type XLSXWriter struct {
	baseWriter
}

// NewXLSXWriter creates an XLSXWriter that outputs to the given writer.
func NewXLSXWriter(output io.Writer) *XLSXWriter {
	return &XLSXWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the rows as an XLSX workbook.
func (w *XLSXWriter) Write(rows []model.ReportRow) (int, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return 0, fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := setRow(f, 1, model.Columns); err != nil {
		return 0, err
	}
	for i, row := range rows {
		if err := setRow(f, i+2, row.Values()); err != nil {
			return 0, err
		}
	}

	if err := styleSheet(f); err != nil {
		return 0, err
	}

	n, err := f.WriteTo(w.output)
	return int(n), err
}

func setRow(f *excelize.File, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	// Cells are written as strings so counts keep the same text in every format.
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}
	return nil
}

func styleSheet(f *excelize.File) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	last, err := excelize.ColumnNumberToName(len(model.Columns))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last+"1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set width of column %s: %w", col, err)
		}
	}

	return f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// ReadXLSX reads the rows of a workbook written by XLSXWriter.
func ReadXLSX(r io.Reader) ([]model.ReportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	records, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrInvalidHeader
	}

	rows := make([]model.ReportRow, 0, len(records)-1)
	for _, record := range records[1:] {
		// GetRows drops trailing empty cells.
		for len(record) < len(model.Columns) {
			record = append(record, "")
		}
		row, err := model.RowFromValues(record)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
