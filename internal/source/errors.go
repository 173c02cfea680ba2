package source

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by *NotFoundError.
	ErrNotFound = errors.New("input file not found")

	// ErrUnsupportedFormat is returned for list files that are neither text nor xlsx.
	ErrUnsupportedFormat = errors.New("unsupported input file format")

	// ErrEmptyAddress is returned by FromManualEntry for blank input.
	ErrEmptyAddress = errors.New("no email address given")
)

// NotFoundError reports a list file that does not exist.
type NotFoundError struct {
	Path string
}

// Error implements error.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("input file not found: %s", e.Path)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
