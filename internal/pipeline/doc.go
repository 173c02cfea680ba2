// Package pipeline runs a breach check as a sequence of steps.
//
// A check looks up every address, flattens the results into report rows,
// prints them, renders the requested artifacts, optionally emails the
// preferred artifact and records the run in the history database. Each
// stage is a Step that receives the shared *model.Run and fills in its
// part of it.
//
// Lookups are strictly sequential with a pause between requests, because
// the breach API enforces a per-key rate limit. Steps that only report
// on a run (notify, history) record their failures in the run instead of
// stopping it.
package pipeline
