package report

import (
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nao1215/breachscan/internal/model"
)

// tableColumns are the columns shown on a terminal. Domain is left out to
// keep lines short; it remains in every file format.
var tableColumns = []string{"Email", "Breach", "Title", "Date", "Accounts", "Compromised Data", "Verified", "Sensitive"}

// TableWriter prints rows as a terminal table followed by an optional
// colored summary.
type TableWriter struct {
	baseWriter

	// printer formats counts with thousands separators.
	printer *message.Printer

	// color forces colored output on or off. nil follows fatih/color's
	// terminal detection.
	color *bool
}

// TableWriterOption configures a TableWriter.
type TableWriterOption func(*TableWriter)

// WithColor forces colored output on or off.
func WithColor(enabled bool) TableWriterOption {
	return func(w *TableWriter) {
		w.color = &enabled
	}
}

// WithLanguage selects the locale used for number formatting.
func WithLanguage(tag language.Tag) TableWriterOption {
	return func(w *TableWriter) {
		w.printer = message.NewPrinter(tag)
	}
}

// NewTableWriter creates a TableWriter that outputs to the given writer.
func NewTableWriter(output io.Writer, opts ...TableWriterOption) *TableWriter {
	w := &TableWriter{
		baseWriter: newBaseWriter(output),
		printer:    message.NewPrinter(language.English),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write prints the rows as a table.
func (w *TableWriter) Write(rows []model.ReportRow) (int, error) {
	cw := &countingWriter{w: w.output}
	if len(rows) == 0 {
		_, err := io.WriteString(cw, "No addresses were checked.\n")
		return cw.n, err
	}

	data := make([][]string, len(rows))
	for i, r := range rows {
		data[i] = []string{
			r.Email,
			r.BreachName,
			r.Title,
			r.BreachDate,
			w.formatCount(r.AccountsAffected),
			r.DataClasses,
			r.Verified,
			r.Sensitive,
		}
	}

	table := tablewriter.NewWriter(cw)
	table.Header(tableColumns)
	if err := table.Bulk(data); err != nil {
		return cw.n, err
	}
	if err := table.Render(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// WriteSummary prints the outcome counts of a run.
func (w *TableWriter) WriteSummary(s model.Summary) (int, error) {
	cw := &countingWriter{w: w.output}

	plain := w.newColor()
	red := w.newColor(color.FgRed, color.Bold)
	green := w.newColor(color.FgGreen, color.Bold)
	yellow := w.newColor(color.FgYellow)

	lines := []struct {
		c     *color.Color
		label string
		value string
	}{
		{plain, "Addresses checked", w.printer.Sprintf("%d", s.Addresses)},
		{red, "Compromised", w.printer.Sprintf("%d", s.Compromised)},
		{green, "Not compromised", w.printer.Sprintf("%d", s.Clean)},
		{yellow, "Lookups failed", w.printer.Sprintf("%d", s.Failed)},
		{plain, "Breach records", w.printer.Sprintf("%d", s.Breaches)},
		{plain, "Exposed accounts", w.printer.Sprintf("%d", s.ExposedAccounts)},
	}

	if _, err := io.WriteString(cw, "\nSummary\n"); err != nil {
		return cw.n, err
	}
	for _, l := range lines {
		if _, err := l.c.Fprintf(cw, "  %-18s %s\n", l.label+":", l.value); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

func (w *TableWriter) newColor(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if w.color != nil {
		if *w.color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return c
}

// formatCount adds thousands separators to a decimal count and leaves
// placeholders untouched.
func (w *TableWriter) formatCount(s string) string {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return s
	}
	return w.printer.Sprintf("%d", n)
}
