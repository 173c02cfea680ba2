package model

// Breach is one breach record returned by the breachedaccount endpoint.
// Field names follow the API's JSON representation so the response body can
// be decoded directly.
type Breach struct {
	// Name is the stable identifier of the breach (e.g. "Adobe").
	Name string `json:"Name"`

	// Title is the display name of the breach.
	Title string `json:"Title"`

	// Domain is the primary website of the breached service.
	// It may be empty for breaches without a clear origin.
	Domain string `json:"Domain"`

	// BreachDate is the date (YYYY-MM-DD) the breach occurred.
	BreachDate string `json:"BreachDate"`

	// PwnCount is the number of accounts loaded into the service.
	PwnCount int64 `json:"PwnCount"`

	// DataClasses lists the categories of compromised data, in API order.
	DataClasses []string `json:"DataClasses"`

	// IsVerified is true when the breach has been verified as legitimate.
	IsVerified bool `json:"IsVerified"`

	// IsSensitive is true when the breach is flagged as sensitive.
	IsSensitive bool `json:"IsSensitive"`
}
