package report

import "errors"

var (
	// ErrWrite wraps every failure to create, write or close an artifact.
	ErrWrite = errors.New("failed to write report")

	// ErrUnsupportedFormat is returned for formats without a writer.
	ErrUnsupportedFormat = errors.New("unsupported report format")

	// ErrInvalidHeader is returned by ReadCSV when the header row does not
	// match the report columns.
	ErrInvalidHeader = errors.New("report header does not match the expected columns")
)
