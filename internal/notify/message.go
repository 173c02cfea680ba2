package notify

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"time"

	"github.com/google/uuid"
)

// Fixed content of every report email.
const (
	Subject = "Email breach report"
	Body    = "Hello,\r\n\r\n" +
		"Attached is the breach report for the email addresses that were checked " +
		"against Have I Been Pwned.\r\n\r\n" +
		"Addresses listed with a breach should change their passwords and enable " +
		"two-factor authentication where possible.\r\n"
)

// base64LineLength is the maximum encoded line length (RFC 2045).
const base64LineLength = 76

// Message is a report email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string

	// AttachmentName is the file name shown to the recipient.
	AttachmentName string

	// Attachment is the raw file content.
	Attachment []byte

	// Date defaults to the time Bytes is called.
	Date time.Time
}

// Bytes renders the message as RFC 5322 text with a multipart/mixed body:
// a plain-text part followed by the attachment, base64-encoded as
// application/octet-stream.
func (m *Message) Bytes() ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=UTF-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := text.Write([]byte(m.Body)); err != nil {
		return nil, err
	}

	if m.AttachmentName != "" {
		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": m.AttachmentName})
		att, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"application/octet-stream"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {disposition},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64(att, m.Attachment); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	date := m.Date
	if date.IsZero() {
		date = time.Now()
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", m.From)
	fmt.Fprintf(&msg, "To: %s\r\n", m.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", date.Format(time.RFC1123Z))
	fmt.Fprintf(&msg, "Message-ID: <%s@breachscan>\r\n", uuid.New().String())
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/mixed; boundary=%q\r\n", mw.Boundary())
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

func writeBase64(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 0 {
		n := min(len(encoded), base64LineLength)
		if _, err := fmt.Fprintf(w, "%s\r\n", encoded[:n]); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}
