// Package report renders breach report rows.
//
// File formats (CSV, XLSX, Markdown and JSON) share the fixed column order
// of model.Columns and are produced by Render, which also records a SHA3-256
// digest of every artifact it writes. TableWriter prints the same rows to a
// terminal together with a run summary.
package report
