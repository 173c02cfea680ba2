package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http/httptest"
	"net/mail"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

// fakeSender records what Dispatch hands to it.
type fakeSender struct {
	from      string
	err       error
	recipient string
	raw       []byte
	calls     int
}

func (f *fakeSender) From() string { return f.from }

func (f *fakeSender) Send(_ context.Context, recipient string, raw []byte) error {
	f.calls++
	f.recipient = recipient
	f.raw = raw
	return f.err
}

func writeArtifact(t *testing.T, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// parseMessage returns the headers, the text body and the attachments of raw.
func parseMessage(t *testing.T, raw []byte) (mail.Header, string, map[string][]byte) {
	t.Helper()

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("invalid message: %v", err)
	}
	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("invalid content type: %v", err)
	}
	if mediaType != "multipart/mixed" {
		t.Fatalf("expected multipart/mixed, got %s", mediaType)
	}

	var text string
	attachments := make(map[string][]byte)
	mr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("invalid part: %v", err)
		}
		data, err := io.ReadAll(part)
		if err != nil {
			t.Fatal(err)
		}
		if part.FileName() == "" {
			text = string(data)
			continue
		}
		if part.Header.Get("Content-Type") != "application/octet-stream" {
			t.Errorf("expected application/octet-stream, got %q", part.Header.Get("Content-Type"))
		}
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(data), "\r\n", ""))
		if err != nil {
			t.Fatalf("attachment is not base64: %v", err)
		}
		attachments[part.FileName()] = decoded
	}
	return msg.Header, text, attachments
}

// TestMessageBytes tests the MIME structure of a report email.
func TestMessageBytes(t *testing.T) {
	t.Parallel()

	attachment := bytes.Repeat([]byte("alice@example.com,not compromised,-,-,-,-,-,-,-\n"), 10)
	msg := &Message{
		From:           "reports@example.org",
		To:             "security@example.com",
		Subject:        Subject,
		Body:           Body,
		AttachmentName: "breach-report.csv",
		Attachment:     attachment,
		Date:           time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC),
	}

	raw, err := msg.Bytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, line := range strings.Split(string(raw), "\r\n") {
		if len(line) > 998 {
			t.Fatalf("line exceeds RFC 5322 limit: %d", len(line))
		}
	}

	header, text, attachments := parseMessage(t, raw)
	if header.Get("From") != "reports@example.org" {
		t.Errorf("unexpected From %q", header.Get("From"))
	}
	if header.Get("To") != "security@example.com" {
		t.Errorf("unexpected To %q", header.Get("To"))
	}
	if header.Get("Subject") != Subject {
		t.Errorf("unexpected Subject %q", header.Get("Subject"))
	}
	if header.Get("Message-ID") == "" {
		t.Error("expected a Message-ID")
	}
	if !strings.Contains(text, "breach report") {
		t.Errorf("unexpected body %q", text)
	}
	if got := attachments["breach-report.csv"]; !bytes.Equal(got, attachment) {
		t.Errorf("attachment mismatch: got %d bytes, want %d", len(got), len(attachment))
	}
}

// TestDispatch tests that the artifact is attached and handed to the sender.
func TestDispatch(t *testing.T) {
	t.Parallel()

	content := []byte("PK\x03\x04 workbook bytes")
	path := writeArtifact(t, "report.xlsx", content)
	sender := &fakeSender{from: "reports@example.org"}

	if err := Dispatch(testContext(t), sender, path, " security@example.com "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.calls != 1 {
		t.Fatalf("expected 1 send, got %d", sender.calls)
	}
	if sender.recipient != "security@example.com" {
		t.Errorf("unexpected recipient %q", sender.recipient)
	}

	header, _, attachments := parseMessage(t, sender.raw)
	if header.Get("From") != "reports@example.org" {
		t.Errorf("unexpected From %q", header.Get("From"))
	}
	if !bytes.Equal(attachments["report.xlsx"], content) {
		t.Errorf("attachment mismatch")
	}
}

// TestDispatchErrors tests that every failure matches ErrTransmission.
func TestDispatchErrors(t *testing.T) {
	t.Parallel()

	relayErr := errors.New("535 authentication failed")

	tests := []struct {
		name      string
		path      func(t *testing.T) string
		recipient string
		sendErr   error
		wantErr   error
		wantCalls int
	}{
		{
			name:      "sender failure",
			path:      func(t *testing.T) string { return writeArtifact(t, "r.csv", []byte("x")) },
			recipient: "security@example.com",
			sendErr:   relayErr,
			wantErr:   relayErr,
			wantCalls: 1,
		},
		{
			name:      "missing artifact",
			path:      func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.csv") },
			recipient: "security@example.com",
			wantErr:   os.ErrNotExist,
		},
		{
			name:      "empty recipient",
			path:      func(t *testing.T) string { return writeArtifact(t, "r.csv", []byte("x")) },
			recipient: "  ",
			wantErr:   ErrNoRecipient,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sender := &fakeSender{from: "reports@example.org", err: tt.sendErr}
			err := Dispatch(testContext(t), sender, tt.path(t), tt.recipient)

			if !errors.Is(err, ErrTransmission) {
				t.Errorf("expected ErrTransmission, got %v", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v in chain, got %v", tt.wantErr, err)
			}
			if sender.calls != tt.wantCalls {
				t.Errorf("expected %d sends, got %d", tt.wantCalls, sender.calls)
			}
		})
	}
}

// fakeSES records SendEmail input.
type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("0100018e-test")}, nil
}

// TestSESSenderSend tests that the raw message is submitted unchanged.
func TestSESSenderSend(t *testing.T) {
	t.Parallel()

	api := &fakeSES{}
	sender := newSESSender(api, "reports@example.org", nil)
	raw := []byte("From: reports@example.org\r\n\r\nbody")

	if err := sender.Send(testContext(t), "security@example.com", raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if aws.ToString(api.input.FromEmailAddress) != "reports@example.org" {
		t.Errorf("unexpected from %q", aws.ToString(api.input.FromEmailAddress))
	}
	if got := api.input.Destination.ToAddresses; len(got) != 1 || got[0] != "security@example.com" {
		t.Errorf("unexpected destination %v", got)
	}
	if api.input.Content.Raw == nil || !bytes.Equal(api.input.Content.Raw.Data, raw) {
		t.Error("expected raw content to be submitted unchanged")
	}
	if sender.From() != "reports@example.org" {
		t.Errorf("unexpected From() %q", sender.From())
	}
}

// TestSESSenderSendError tests that SES errors are returned.
func TestSESSenderSendError(t *testing.T) {
	t.Parallel()

	apiErr := errors.New("MessageRejected: Email address is not verified")
	sender := newSESSender(&fakeSES{err: apiErr}, "reports@example.org", nil)

	err := Dispatch(testContext(t), sender, writeArtifact(t, "r.csv", []byte("x")), "security@example.com")
	if !errors.Is(err, apiErr) || !errors.Is(err, ErrTransmission) {
		t.Errorf("expected wrapped SES error, got %v", err)
	}
}

// fakeRelay is a minimal SMTP server that supports STARTTLS and AUTH PLAIN.
type fakeRelay struct {
	ln        net.Listener
	tlsConfig *tls.Config

	mu       sync.Mutex
	authLine string
	tlsUsed  bool
	mailFrom string
	rcptTo   string
	data     []byte
}

func startFakeRelay(t *testing.T, tlsConfig *tls.Config) *fakeRelay {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	r := &fakeRelay{ln: ln, tlsConfig: tlsConfig}
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.serve()
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		<-done
	})
	return r
}

func (r *fakeRelay) port() int {
	return r.ln.Addr().(*net.TCPAddr).Port
}

func (r *fakeRelay) serve() {
	conn, err := r.ln.Accept()
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	tp := newTextConn(conn)
	tp.reply("220 fake relay ready")

	secure := false
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb := strings.ToUpper(strings.Fields(line + " x")[0])

		switch verb {
		case "EHLO", "HELO":
			exts := []string{"fake relay"}
			if r.tlsConfig != nil && !secure {
				exts = append(exts, "STARTTLS")
			}
			if secure {
				exts = append(exts, "AUTH PLAIN")
			}
			for i, e := range exts {
				sep := "-"
				if i == len(exts)-1 {
					sep = " "
				}
				tp.reply("250" + sep + e)
			}
		case "STARTTLS":
			tp.reply("220 ready to start TLS")
			tlsConn := tls.Server(conn, r.tlsConfig)
			if err := tlsConn.Handshake(); err != nil {
				return
			}
			conn = tlsConn
			tp = newTextConn(tlsConn)
			secure = true
			r.mu.Lock()
			r.tlsUsed = true
			r.mu.Unlock()
		case "AUTH":
			r.mu.Lock()
			r.authLine = line
			r.mu.Unlock()
			tp.reply("235 2.7.0 Authentication successful")
		case "MAIL":
			r.mu.Lock()
			r.mailFrom = line
			r.mu.Unlock()
			tp.reply("250 OK")
		case "RCPT":
			r.mu.Lock()
			r.rcptTo = line
			r.mu.Unlock()
			tp.reply("250 OK")
		case "DATA":
			tp.reply("354 end data with <CR><LF>.<CR><LF>")
			data, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			r.mu.Lock()
			r.data = data
			r.mu.Unlock()
			tp.reply("250 queued")
		case "QUIT":
			tp.reply("221 bye")
			return
		default:
			tp.reply("502 command not implemented")
		}
	}
}

// textConn is a textproto.Conn with a reply helper.
type textConn struct {
	*textproto.Conn
}

func newTextConn(conn net.Conn) *textConn {
	return &textConn{Conn: textproto.NewConn(conn)}
}

func (c *textConn) reply(line string) {
	_ = c.PrintfLine("%s", line)
}

// testCertificates returns a server TLS config and a client pool trusting it.
func testCertificates(t *testing.T) (*tls.Config, *x509.CertPool) {
	t.Helper()

	ts := httptest.NewUnstartedServer(nil)
	ts.StartTLS()
	cert := ts.TLS.Certificates[0]
	pool := x509.NewCertPool()
	pool.AddCert(ts.Certificate())
	ts.Close()

	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, pool
}

// TestSMTPSenderSend tests the full relay conversation over STARTTLS.
func TestSMTPSenderSend(t *testing.T) {
	t.Parallel()

	serverTLS, pool := testCertificates(t)
	relay := startFakeRelay(t, serverTLS)

	sender := NewSMTPSender("127.0.0.1", relay.port(), "relay-user", "relay-pass",
		"account@example.org", "reports@example.org",
		WithTLSConfig(&tls.Config{ServerName: "127.0.0.1", RootCAs: pool, MinVersion: tls.VersionTLS12}),
		WithDialTimeout(5*time.Second),
	)

	if err := Dispatch(testContext(t), sender, writeArtifact(t, "report.csv", []byte("a,b\n")), "security@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	relay.mu.Lock()
	defer relay.mu.Unlock()

	if !relay.tlsUsed {
		t.Error("expected STARTTLS before authentication")
	}
	wantAuth := "AUTH PLAIN " + base64.StdEncoding.EncodeToString([]byte("\x00relay-user\x00relay-pass"))
	if relay.authLine != wantAuth {
		t.Errorf("unexpected auth line %q", relay.authLine)
	}
	if !strings.Contains(relay.mailFrom, "<account@example.org>") {
		t.Errorf("expected envelope sender to be the relay account, got %q", relay.mailFrom)
	}
	if !strings.Contains(relay.rcptTo, "<security@example.com>") {
		t.Errorf("unexpected recipient %q", relay.rcptTo)
	}
	if !bytes.Contains(relay.data, []byte("From: reports@example.org")) {
		t.Errorf("expected header From to be the sender address, got:\n%s", relay.data)
	}
}

// TestSMTPSenderRequiresStartTLS tests that credentials are never sent in clear text.
func TestSMTPSenderRequiresStartTLS(t *testing.T) {
	t.Parallel()

	relay := startFakeRelay(t, nil)
	sender := NewSMTPSender("127.0.0.1", relay.port(), "relay-user", "relay-pass",
		"account@example.org", "reports@example.org")

	err := sender.Send(testContext(t), "security@example.com", []byte("x"))
	if !errors.Is(err, ErrStartTLSUnsupported) {
		t.Errorf("expected ErrStartTLSUnsupported, got %v", err)
	}

	relay.mu.Lock()
	defer relay.mu.Unlock()
	if relay.authLine != "" {
		t.Errorf("expected no AUTH without TLS, got %q", relay.authLine)
	}
}

// TestSMTPSenderUnreachable tests that a closed relay port is a transmission failure.
func TestSMTPSenderUnreachable(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	sender := NewSMTPSender("127.0.0.1", port, "u", "p", "a@example.org", "r@example.org",
		WithDialTimeout(time.Second))
	err = Dispatch(testContext(t), sender, writeArtifact(t, "r.csv", []byte("x")), "security@example.com")
	if !errors.Is(err, ErrTransmission) {
		t.Errorf("expected ErrTransmission, got %v", err)
	}
	if !strings.Contains(err.Error(), strconv.Itoa(port)) {
		t.Errorf("expected relay address in error, got %v", err)
	}
}

// testContext returns a context that is canceled when the test finishes,
// mirroring testing.T.Context on toolchains that predate it.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
