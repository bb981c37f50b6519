// Package ses implements a Provider that sends emails via AWS SES v2.
package ses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"

	"github.com/shineum/mail-relay/internal/email"
	"github.com/shineum/mail-relay/internal/provider"
)

// credentialErrorCodes are SES API error codes caused by the relay's own
// AWS credentials rather than by the message.
var credentialErrorCodes = map[string]bool{
	"InvalidClientTokenId":        true,
	"SignatureDoesNotMatch":       true,
	"UnrecognizedClientException": true,
	"AccessDeniedException":       true,
	"ExpiredToken":                true,
}

// SESProviderConfig holds the configuration for creating a SESProvider.
type SESProviderConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Sender          string
}

// SESProvider sends emails via the AWS SES v2 API.
type SESProvider struct {
	sender string
	client SendEmailAPI
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// New creates a new SESProvider with the given configuration.
// Static credentials are used when both keys are set; otherwise the default
// AWS credential chain applies.
func New(ctx context.Context, cfg SESProviderConfig) (*SESProvider, error) {
	var opts []func(*awsconfig.LoadOptions) error

	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// One attempt per request; callers retry at the HTTP layer.
	client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		o.RetryMaxAttempts = 1
	})

	return &SESProvider{
		sender: cfg.Sender,
		client: client,
	}, nil
}

// NewWithClient creates a SESProvider with a custom client, used for testing.
func NewWithClient(sender string, client SendEmailAPI) *SESProvider {
	return &SESProvider{
		sender: sender,
		client: client,
	}
}

// Send composes msg as raw MIME and submits it in a single SendEmail call.
// Raw submission keeps every attachment base64-encoded exactly as the SMTP
// provider sends it.
func (s *SESProvider) Send(ctx context.Context, msg *email.Message) error {
	composed, err := email.Compose(s.sender, msg)
	if err != nil {
		return err
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(composed.From),
		Destination: &types.Destination{
			ToAddresses: composed.Recipients,
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{
				Data: composed.Raw,
			},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		slog.WarnContext(ctx, "SES API error", "error", err)
		if isCredentialError(err) {
			return fmt.Errorf("%w: %w", provider.ErrTransportAuth, err)
		}
		return fmt.Errorf("%w: SES: %w", provider.ErrTransportProtocol, err)
	}

	slog.DebugContext(ctx, "SES accepted message",
		"message_id", composed.MessageID,
		"ses_message_id", aws.ToString(out.MessageId),
	)
	return nil
}

// Name returns the provider name.
func (s *SESProvider) Name() string {
	return "ses"
}

func isCredentialError(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return credentialErrorCodes[apiErr.ErrorCode()]
}
