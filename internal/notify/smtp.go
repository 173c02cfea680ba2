package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// defaultDialTimeout bounds the TCP connect to the relay.
const defaultDialTimeout = 30 * time.Second

// SMTPSender sends through an authenticated relay. The connection is
// upgraded with STARTTLS before credentials are sent; a relay without
// STARTTLS is refused.
type SMTPSender struct {
	host string
	port int

	username string
	password string

	// envelopeFrom is the MAIL FROM address (the relay account).
	envelopeFrom string

	// headerFrom is the address shown to the recipient.
	headerFrom string

	tlsConfig   *tls.Config
	dialTimeout time.Duration
	logger      *slog.Logger
}

// SMTPOption configures an SMTPSender.
type SMTPOption func(*SMTPSender)

// WithTLSConfig replaces the TLS configuration used for STARTTLS.
func WithTLSConfig(cfg *tls.Config) SMTPOption {
	return func(s *SMTPSender) {
		s.tlsConfig = cfg
	}
}

// WithDialTimeout sets the relay connect timeout.
func WithDialTimeout(d time.Duration) SMTPOption {
	return func(s *SMTPSender) {
		s.dialTimeout = d
	}
}

// WithSMTPLogger sets the logger for relay events.
func WithSMTPLogger(logger *slog.Logger) SMTPOption {
	return func(s *SMTPSender) {
		s.logger = logger
	}
}

// NewSMTPSender creates a sender for the relay at host:port.
// envelopeFrom is the relay account address used in MAIL FROM and
// headerFrom is the From header.
func NewSMTPSender(host string, port int, username, password, envelopeFrom, headerFrom string, opts ...SMTPOption) *SMTPSender {
	s := &SMTPSender{
		host:         host,
		port:         port,
		username:     username,
		password:     password,
		envelopeFrom: envelopeFrom,
		headerFrom:   headerFrom,
		tlsConfig:    &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12},
		dialTimeout:  defaultDialTimeout,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// From implements Sender.
func (s *SMTPSender) From() string {
	return s.headerFrom
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, recipient string, raw []byte) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	dialer := &net.Dialer{Timeout: s.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("SMTP connect to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("SMTP client: %w", err)
	}
	defer func() { _ = c.Close() }()

	if ok, _ := c.Extension("STARTTLS"); !ok {
		return ErrStartTLSUnsupported
	}
	if err := c.StartTLS(s.tlsConfig); err != nil {
		return fmt.Errorf("STARTTLS: %w", err)
	}
	if err := c.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
		return fmt.Errorf("AUTH: %w", err)
	}
	s.logger.Debug("authenticated with SMTP relay", "addr", addr, "username", s.username)

	if err := c.Mail(s.envelopeFrom); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := c.Rcpt(recipient); err != nil {
		return fmt.Errorf("RCPT TO: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("DATA close: %w", err)
	}
	if err := c.Quit(); err != nil {
		return fmt.Errorf("QUIT: %w", err)
	}

	s.logger.Info("report email sent", "relay", addr, "recipient", recipient, "bytes", len(raw))
	return nil
}
