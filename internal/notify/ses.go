package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// sesAPI is the subset of the SES v2 client used by SESSender.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends the raw message through Amazon SES.
type SESSender struct {
	client sesAPI
	from   string
	logger *slog.Logger
}

// NewSESSender creates an SES sender in region. When accessKey and
// secretKey are empty the default AWS credential chain is used.
func NewSESSender(ctx context.Context, region, accessKey, secretKey, from string, logger *slog.Logger) (*SESSender, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return newSESSender(sesv2.NewFromConfig(cfg), from, logger), nil
}

func newSESSender(client sesAPI, from string, logger *slog.Logger) *SESSender {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SESSender{client: client, from: from, logger: logger}
}

// From implements Sender.
func (s *SESSender) From() string {
	return s.from
}

// Send implements Sender.
func (s *SESSender) Send(ctx context.Context, recipient string, raw []byte) error {
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{recipient}},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}

	s.logger.Info("report email sent", "transport", "ses", "recipient", recipient,
		"message_id", aws.ToString(out.MessageId))
	return nil
}
