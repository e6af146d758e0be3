package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"carwash/internal/types"
)

const sesCharset = "UTF-8"

// SESAPI is the subset of the SES v2 client used by SESClient.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESClientConfig configures an SESClient. ConfigSetName is optional.
type SESClientConfig struct {
	ConfigSetName string
	Logger        *slog.Logger
}

// SESClient sends reminders through AWS SES v2. The SDK carries its own
// retryer, so requests do not go through BaseClient.
type SESClient struct {
	api           SESAPI
	configSetName string
	logger        *slog.Logger
}

var _ EmailProvider = (*SESClient)(nil)

// NewSESClient creates an SESClient from an AWS config.
func NewSESClient(awsCfg aws.Config, cfg SESClientConfig) *SESClient {
	return NewSESClientWithAPI(sesv2.NewFromConfig(awsCfg), cfg)
}

// NewSESClientWithAPI creates an SESClient around api.
func NewSESClientWithAPI(api SESAPI, cfg SESClientConfig) *SESClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SESClient{
		api:           api,
		configSetName: cfg.ConfigSetName,
		logger:        logger,
	}
}

// Send delivers input as a simple (non-raw) SES message and returns the SES
// message id.
func (s *SESClient) Send(ctx context.Context, input types.SendInput) (string, error) {
	out, err := s.api.SendEmail(ctx, s.buildInput(input))
	if err != nil {
		s.logger.WarnContext(ctx, "SES send failed", "reference_id", input.ReferenceID, "error", err)
		return "", mapSESError(err)
	}
	return aws.ToString(out.MessageId), nil
}

func (s *SESClient) buildInput(input types.SendInput) *sesv2.SendEmailInput {
	body := &sestypes.Body{}
	if input.BodyText != "" {
		body.Text = sesContent(input.BodyText)
	}
	if input.BodyHTML != "" {
		body.Html = sesContent(input.BodyHTML)
	}

	req := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(senderAddress(input.From)),
		Destination:      &sestypes.Destination{ToAddresses: []string{input.To}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: sesContent(input.Subject),
				Body:    body,
			},
		},
	}
	if input.ReplyTo != "" {
		req.ReplyToAddresses = []string{input.ReplyTo}
	}
	if s.configSetName != "" {
		req.ConfigurationSetName = aws.String(s.configSetName)
	}
	if input.ReferenceID != "" {
		req.EmailTags = []sestypes.MessageTag{{
			Name:  aws.String("reference"),
			Value: aws.String(sesTagValue(input.ReferenceID)),
		}}
	}
	return req
}

func sesContent(s string) *sestypes.Content {
	return &sestypes.Content{Data: aws.String(s), Charset: aws.String(sesCharset)}
}

// senderAddress renders the From header, "Name <address>" or the bare address.
func senderAddress(id types.SenderIdentity) string {
	if id.Name == "" {
		return id.Address
	}
	return fmt.Sprintf("%s <%s>", id.Name, id.Address)
}

// sesTagValue replaces characters SES does not accept in tag values.
func sesTagValue(v string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_', r == '-', r == '.', r == '@':
			return r
		default:
			return '_'
		}
	}, v)
}

// mapSESError turns SES failures into AppErrors. Rejections are permanent
// for the recipient; throttling and paused sending are transient.
func mapSESError(err error) error {
	var (
		rejected  *sestypes.MessageRejected
		throttled *sestypes.TooManyRequestsException
		paused    *sestypes.SendingPausedException
	)
	switch {
	case errors.As(err, &rejected):
		return types.NewAppError(types.ErrCodeEmailBlocked, "SES rejected the message", err)
	case errors.As(err, &throttled):
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "SES rate limit exceeded", err)
	case errors.As(err, &paused):
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "SES sending is paused for the account", err)
	default:
		return types.NewAppError(types.ErrCodeUpstreamEmailProvider, "SES send failed", err)
	}
}
