// Package log provides secure logging built on the standard slog package.
//
// SecureHandler masks sensitive values before they reach the output:
//   - API and relay credentials (hibp-api-key, passwords, AWS keys)
//   - HTTP authorization headers and SMTP AUTH payloads
//   - values that look like secrets regardless of their key
//
// Even in verbose mode, secrets are masked so that diagnostic output can be
// shared without leaking the API key.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("request sent", "hibp-api-key", key) // key is masked
//	slog.SetDefault(logger)
package log
