// Package model defines the core data structures used throughout breachscan.
//
// This package contains the following main types:
//   - Breach: One breach record as returned by the Have I Been Pwned API
//   - LookupResult: The tagged outcome of looking up one address
//   - ReportRow: A flattened, display-ready row of the report
//   - Run: Everything a single check invocation produced
//
// Models live in their own package so that the client, the pipeline, the
// report writers and the history store can share them without import cycles.
package model
