package model

import (
	"fmt"
	"strings"
	"time"
)

// Format identifies an artifact format.
type Format string

const (
	// FormatCSV is comma-separated text.
	FormatCSV Format = "csv"

	// FormatXLSX is an Excel workbook.
	FormatXLSX Format = "xlsx"

	// FormatMarkdown is a GitHub Flavored Markdown document.
	FormatMarkdown Format = "markdown"

	// FormatJSON is a JSON document.
	FormatJSON Format = "json"
)

// AllFormats lists every supported format in attachment preference order.
var AllFormats = []Format{FormatXLSX, FormatCSV, FormatMarkdown, FormatJSON}

// Extension returns the file extension of the format, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatXLSX:
		return ".xlsx"
	case FormatMarkdown:
		return ".md"
	case FormatJSON:
		return ".json"
	default:
		return ""
	}
}

// ParseFormat parses a format name. It accepts "md" and "excel" as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported format %q (supported: csv, xlsx, markdown, json)", s)
	}
}

// Artifact is a rendered report file. It is never modified after creation.
type Artifact struct {
	Format Format `json:"format"`
	Path   string `json:"path"`

	// Digest is the hex-encoded SHA3-256 of the file contents.
	Digest string `json:"digest,omitempty"`
}

// Run collects everything a single check produces.
type Run struct {
	// Source describes where the addresses came from: a file path or "manual".
	Source string `json:"source"`

	// Emails are the input addresses in input order.
	Emails []string `json:"emails"`

	// Lookups hold one entry per input address, in input order.
	Lookups []Lookup `json:"lookups"`

	// Rows is the flattened report built from Lookups.
	Rows []ReportRow `json:"rows"`

	// Artifacts are the files rendered from Rows.
	Artifacts []Artifact `json:"artifacts,omitempty"`

	// Recipient is the address the report was emailed to, if any.
	Recipient string `json:"recipient,omitempty"`

	// Notified is true when the report email was accepted for delivery.
	Notified bool `json:"notified"`

	// NotifyError holds the transmission error message, if sending failed.
	NotifyError string `json:"notify_error,omitempty"`

	// Steps lists the pipeline steps that ran, in order.
	Steps []string `json:"steps,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Err is the error of the step that stopped the run, if any.
	Err error `json:"-"`

	// ErrorMessage mirrors Err for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// NewRun creates a run for the given addresses.
func NewRun(source string, emails []string) *Run {
	return &Run{
		Source:    source,
		Emails:    emails,
		Lookups:   make([]Lookup, 0, len(emails)),
		StartedAt: time.Now(),
	}
}

// PreferredArtifact returns the artifact to attach to an outbound email:
// the first rendered artifact in AllFormats order.
func (r *Run) PreferredArtifact() (Artifact, bool) {
	for _, f := range AllFormats {
		for _, a := range r.Artifacts {
			if a.Format == f {
				return a, true
			}
		}
	}
	return Artifact{}, false
}

// Summary holds counts derived from a run's lookups.
type Summary struct {
	Addresses       int   `json:"addresses"`
	Compromised     int   `json:"compromised"`
	Clean           int   `json:"clean"`
	Failed          int   `json:"failed"`
	Breaches        int   `json:"breaches"`
	ExposedAccounts int64 `json:"exposed_accounts"`
}

// Summarize counts the outcomes of the lookups.
func Summarize(lookups []Lookup) Summary {
	s := Summary{Addresses: len(lookups)}
	for _, l := range lookups {
		switch l.Result.Kind {
		case ResultBreached:
			s.Compromised++
			s.Breaches += len(l.Result.Breaches)
			for _, b := range l.Result.Breaches {
				s.ExposedAccounts += b.PwnCount
			}
		case ResultFailed:
			s.Failed++
		default:
			s.Clean++
		}
	}
	return s
}
