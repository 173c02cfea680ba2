package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Marker values used in rows that do not describe a breach.
const (
	// NotCompromised is the breach name of the row emitted for a clean address.
	NotCompromised = "not compromised"

	// LookupFailed is the breach name of the row emitted for a failed lookup.
	LookupFailed = "lookup failed"

	// Placeholder fills every field that has no value.
	Placeholder = "-"

	// DataClassSeparator joins the compromised data categories of a breach.
	DataClassSeparator = ", "
)

// Columns is the fixed column order of every rendered report.
var Columns = []string{
	"Email",
	"Breach Name",
	"Title",
	"Domain",
	"Breach Date",
	"Accounts Affected",
	"Compromised Data",
	"Verified",
	"Sensitive",
}

// ReportRow is a flattened, display-ready record. All fields are strings so
// every output format renders the same values.
type ReportRow struct {
	Email            string `json:"email"`
	BreachName       string `json:"breach_name"`
	Title            string `json:"title"`
	Domain           string `json:"domain"`
	BreachDate       string `json:"breach_date"`
	AccountsAffected string `json:"accounts_affected"`
	DataClasses      string `json:"compromised_data"`
	Verified         string `json:"verified"`
	Sensitive        string `json:"sensitive"`
}

// Values returns the row's fields in Columns order.
func (r ReportRow) Values() []string {
	return []string{
		r.Email,
		r.BreachName,
		r.Title,
		r.Domain,
		r.BreachDate,
		r.AccountsAffected,
		r.DataClasses,
		r.Verified,
		r.Sensitive,
	}
}

// IsBreach reports whether the row describes an actual breach.
func (r ReportRow) IsBreach() bool {
	return r.BreachName != NotCompromised && r.BreachName != LookupFailed
}

// RowFromValues builds a row from fields in Columns order.
func RowFromValues(values []string) (ReportRow, error) {
	if len(values) != len(Columns) {
		return ReportRow{}, fmt.Errorf("expected %d fields, got %d", len(Columns), len(values))
	}
	return ReportRow{
		Email:            values[0],
		BreachName:       values[1],
		Title:            values[2],
		Domain:           values[3],
		BreachDate:       values[4],
		AccountsAffected: values[5],
		DataClasses:      values[6],
		Verified:         values[7],
		Sensitive:        values[8],
	}, nil
}

// BuildRows flattens lookups into report rows.
//
// Rows follow the order of lookups, and within one address the order of the
// breaches returned by the API. A breached address yields one row per breach,
// a clean address yields a single NotCompromised row, and a failed lookup
// yields a single LookupFailed row whose title carries the failure reason.
func BuildRows(lookups []Lookup) []ReportRow {
	rows := make([]ReportRow, 0, len(lookups))
	for _, l := range lookups {
		switch l.Result.Kind {
		case ResultBreached:
			for _, b := range l.Result.Breaches {
				rows = append(rows, breachRow(l.Email, b))
			}
		case ResultFailed:
			row := placeholderRow(l.Email, LookupFailed)
			row.Title = l.Result.FailureText()
			rows = append(rows, row)
		default:
			rows = append(rows, placeholderRow(l.Email, NotCompromised))
		}
	}
	return rows
}

// breachRow renders one breach as a row.
func breachRow(email string, b Breach) ReportRow {
	return ReportRow{
		Email:            email,
		BreachName:       b.Name,
		Title:            b.Title,
		Domain:           b.Domain,
		BreachDate:       b.BreachDate,
		AccountsAffected: strconv.FormatInt(b.PwnCount, 10),
		DataClasses:      strings.Join(b.DataClasses, DataClassSeparator),
		Verified:         yesNo(b.IsVerified),
		Sensitive:        yesNo(b.IsSensitive),
	}
}

func placeholderRow(email, name string) ReportRow {
	return ReportRow{
		Email:            email,
		BreachName:       name,
		Title:            Placeholder,
		Domain:           Placeholder,
		BreachDate:       Placeholder,
		AccountsAffected: Placeholder,
		DataClasses:      Placeholder,
		Verified:         Placeholder,
		Sensitive:        Placeholder,
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
