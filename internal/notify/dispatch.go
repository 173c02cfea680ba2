package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sender delivers a rendered message.
type Sender interface {
	// From returns the address shown in the From header.
	From() string

	// Send delivers raw, an RFC 5322 message, to recipient.
	Send(ctx context.Context, recipient string, raw []byte) error
}

// Dispatch emails the artifact at artifactPath to recipient through sender.
// Any failure, including an unreadable artifact, matches ErrTransmission.
func Dispatch(ctx context.Context, sender Sender, artifactPath, recipient string) error {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return fmt.Errorf("%w: %w", ErrTransmission, ErrNoRecipient)
	}

	attachment, err := os.ReadFile(artifactPath) //nolint:gosec // Artifact written by this run
	if err != nil {
		return fmt.Errorf("%w: failed to read attachment: %w", ErrTransmission, err)
	}

	msg := &Message{
		From:           sender.From(),
		To:             recipient,
		Subject:        Subject,
		Body:           Body,
		AttachmentName: filepath.Base(artifactPath),
		Attachment:     attachment,
	}
	raw, err := msg.Bytes()
	if err != nil {
		return fmt.Errorf("%w: failed to compose message: %w", ErrTransmission, err)
	}

	if err := sender.Send(ctx, recipient, raw); err != nil {
		return fmt.Errorf("%w: %w", ErrTransmission, err)
	}
	return nil
}
