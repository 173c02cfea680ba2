package report

import (
	"io"
	"sort"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/breachscan/internal/model"
)

// maxChartSlices caps the compromised-data pie chart.
const maxChartSlices = 8

// MarkdownWriter outputs the rows as a GitHub-flavored Markdown document.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the rows in Markdown format.
func (w *MarkdownWriter) Write(rows []model.ReportRow) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Email Breach Report")
	md.PlainText("")

	w.writeAlert(md, rows)
	w.writeResults(md, rows)
	w.writeDataClasses(md, rows)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, rows []model.ReportRow) {
	var breaches, failed int
	for _, r := range rows {
		switch {
		case r.IsBreach():
			breaches++
		case r.BreachName == model.LookupFailed:
			failed++
		}
	}

	switch {
	case breaches > 0:
		md.Warningf("%d breach record(s) found. Affected accounts should change their passwords.", breaches)
	case failed > 0:
		md.Importantf("%d lookup(s) failed. Their addresses were not checked.", failed)
	default:
		md.Tip("No checked address appears in a known breach.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeResults(md *markdown.Markdown, rows []model.ReportRow) {
	md.H2("Results")
	md.PlainText("")

	if len(rows) == 0 {
		md.PlainText("No addresses were checked.")
		md.PlainText("")
		return
	}

	table := make([][]string, len(rows))
	for i, r := range rows {
		values := r.Values()
		for j, v := range values {
			values[j] = escapeCell(v)
		}
		table[i] = values
	}
	md.Table(markdown.TableSet{
		Header: model.Columns,
		Rows:   table,
	})
	md.PlainText("")
}

// writeDataClasses charts how often each kind of data was exposed.
func (w *MarkdownWriter) writeDataClasses(md *markdown.Markdown, rows []model.ReportRow) {
	counts := make(map[string]uint64)
	for _, r := range rows {
		if !r.IsBreach() || r.DataClasses == "" {
			continue
		}
		for _, dc := range strings.Split(r.DataClasses, model.DataClassSeparator) {
			counts[dc]++
		}
	}
	if len(counts) == 0 {
		return
	}

	classes := make([]string, 0, len(counts))
	for dc := range counts {
		classes = append(classes, dc)
	}
	sort.Slice(classes, func(i, j int) bool {
		if counts[classes[i]] != counts[classes[j]] {
			return counts[classes[i]] > counts[classes[j]]
		}
		return classes[i] < classes[j]
	})
	if len(classes) > maxChartSlices {
		classes = classes[:maxChartSlices]
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Compromised Data"),
		piechart.WithShowData(true),
	)
	for _, dc := range classes {
		chart.LabelAndIntValue(dc, counts[dc])
	}

	md.H2("Compromised Data")
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by breachscan using data from [Have I Been Pwned](https://haveibeenpwned.com)*")
}

// escapeCell keeps pipes inside a value from splitting the table cell.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
