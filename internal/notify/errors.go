package notify

import "errors"

var (
	// ErrTransmission wraps every failure to deliver a report email.
	ErrTransmission = errors.New("failed to send report email")

	// ErrStartTLSUnsupported is returned when the relay does not offer STARTTLS.
	// Credentials are never sent over a plain connection.
	ErrStartTLSUnsupported = errors.New("SMTP relay does not support STARTTLS")

	// ErrNoRecipient is returned when the recipient address is empty.
	ErrNoRecipient = errors.New("no recipient address")
)
