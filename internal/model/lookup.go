package model

import "strconv"

// ResultKind tells which case of LookupResult is populated.
type ResultKind int

const (
	// ResultClean means the API reported no breaches for the address.
	ResultClean ResultKind = iota

	// ResultBreached means the API returned at least one breach.
	ResultBreached

	// ResultFailed means the lookup did not produce an answer.
	// Reason describes why.
	ResultFailed
)

// String returns the lower-case name of the kind.
func (k ResultKind) String() string {
	switch k {
	case ResultClean:
		return "clean"
	case ResultBreached:
		return "breached"
	case ResultFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureReason classifies a failed lookup.
type FailureReason int

const (
	// FailureNone is the zero value used by successful results.
	FailureNone FailureReason = iota

	// FailureUnauthorized means the API rejected the API key (HTTP 401).
	FailureUnauthorized

	// FailureRateLimited means HTTP 429 persisted after every allowed attempt.
	FailureRateLimited

	// FailureUnexpectedStatus means the API answered with an unclassified status.
	FailureUnexpectedStatus

	// FailureUnreachable means the API could not be reached at all
	// (timeout, connection refused, DNS or proxy failure).
	FailureUnreachable

	// FailureMalformed means the API answered 200 with a body that could not be decoded.
	FailureMalformed
)

// String returns a short human-readable description of the reason.
func (r FailureReason) String() string {
	switch r {
	case FailureNone:
		return "none"
	case FailureUnauthorized:
		return "authentication failed"
	case FailureRateLimited:
		return "rate limit exceeded"
	case FailureUnexpectedStatus:
		return "unexpected API status"
	case FailureUnreachable:
		return "API unreachable"
	case FailureMalformed:
		return "malformed API response"
	default:
		return "unknown failure"
	}
}

// LookupResult is the outcome of looking up one address.
// Exactly one case applies, selected by Kind:
//   - ResultBreached: Breaches holds the records in API order
//   - ResultClean: no breaches were found
//   - ResultFailed: Reason and Err describe the failure
type LookupResult struct {
	Kind     ResultKind    `json:"kind"`
	Breaches []Breach      `json:"breaches,omitempty"`
	Reason   FailureReason `json:"reason,omitempty"`

	// StatusCode is the last HTTP status seen, or 0 if no response arrived.
	StatusCode int `json:"status_code,omitempty"`

	// Err is the underlying error of a failed lookup.
	Err error `json:"-"`
}

// NewBreachedResult returns a result for the given breaches.
// An empty slice yields a clean result.
func NewBreachedResult(breaches []Breach) LookupResult {
	if len(breaches) == 0 {
		return NewCleanResult()
	}
	return LookupResult{Kind: ResultBreached, Breaches: breaches}
}

// NewCleanResult returns a result for an address with no known breaches.
func NewCleanResult() LookupResult {
	return LookupResult{Kind: ResultClean}
}

// NewFailedResult returns a failed result.
func NewFailedResult(reason FailureReason, statusCode int, err error) LookupResult {
	return LookupResult{
		Kind:       ResultFailed,
		Reason:     reason,
		StatusCode: statusCode,
		Err:        err,
	}
}

// IsClean reports whether no breaches were found.
func (r LookupResult) IsClean() bool { return r.Kind == ResultClean }

// IsBreached reports whether at least one breach was found.
func (r LookupResult) IsBreached() bool { return r.Kind == ResultBreached }

// IsFailed reports whether the lookup failed.
func (r LookupResult) IsFailed() bool { return r.Kind == ResultFailed }

// FailureText describes a failed lookup for display, including the HTTP
// status when one is known. It returns an empty string for other kinds.
func (r LookupResult) FailureText() string {
	if !r.IsFailed() {
		return ""
	}
	if r.StatusCode != 0 {
		return r.Reason.String() + " (HTTP " + strconv.Itoa(r.StatusCode) + ")"
	}
	return r.Reason.String()
}

// Lookup pairs an address with the result of looking it up.
// A run keeps lookups in input order; the same address may appear twice.
type Lookup struct {
	Email  string       `json:"email"`
	Result LookupResult `json:"result"`
}
