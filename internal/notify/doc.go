// Package notify emails a rendered report.
//
// Dispatch builds a multipart/mixed message with a fixed subject and body
// and the report attached, then hands it to a Sender. Two senders exist:
// SMTPSender talks to an authenticated relay over STARTTLS, and SESSender
// submits the raw message to Amazon SES.
//
// Every failure is reported as ErrTransmission. Callers treat it as
// non-fatal: the report file already exists when Dispatch is called.
package notify
