package config

import (
	"errors"
	"fmt"
)

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() while still getting a human-readable message.
var (
	// ErrInvalidTimeout is returned when the API timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidPacing is returned when the delay between batch lookups is negative.
	// Use 0 to disable pacing.
	ErrInvalidPacing = errors.New("invalid pacing delay: must be non-negative")

	// ErrInvalidMaxAttempts is returned when fewer than one attempt per lookup is allowed.
	ErrInvalidMaxAttempts = errors.New("invalid max attempts: must be at least 1")

	// ErrNoAPIBaseURL is returned when the API base URL is empty.
	ErrNoAPIBaseURL = errors.New("API base URL must not be empty")

	// ErrUnknownTransport is returned when the mail transport is neither smtp nor ses.
	ErrUnknownTransport = errors.New("unknown mail transport: must be smtp or ses")

	// ErrInvalidSMTPPort is returned when the relay port is out of range.
	ErrInvalidSMTPPort = errors.New("invalid SMTP port: must be between 1 and 65535")

	// ErrMissingSetting is matched by every *MissingSettingError.
	ErrMissingSetting = errors.New("required setting is missing")
)

// MissingSettingError reports a required setting that has no value.
// Setting is the environment variable that supplies it.
type MissingSettingError struct {
	Setting string
}

// Error implements the error interface.
func (e *MissingSettingError) Error() string {
	return fmt.Sprintf("required setting %s is not configured (set it in the environment or the .env file)", e.Setting)
}

// Is makes errors.Is(err, ErrMissingSetting) true for any MissingSettingError.
func (e *MissingSettingError) Is(target error) bool {
	return target == ErrMissingSetting
}
