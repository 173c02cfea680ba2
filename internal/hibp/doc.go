// Package hibp is a client for the Have I Been Pwned breach API.
//
// A Client looks up one address at a time. It never returns an error:
// every outcome, including network failures and exhausted rate-limit
// retries, is folded into a model.LookupResult so that a batch can carry on
// with the next address.
//
// Rate limiting is handled here. When the API answers 429 the client waits
// for the number of seconds given in Retry-After (1 when absent) and sends
// the identical request again, up to a fixed number of attempts.
package hibp
