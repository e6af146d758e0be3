package queue

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"carwash/internal/reminder"
	"carwash/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSNotifier publishes due reminders to an SQS queue.
type SQSNotifier struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   types.Logger
}

var _ reminder.Notifier = (*SQSNotifier)(nil)

// NewSQSNotifier creates an SQSNotifier targeting queueURL.
func NewSQSNotifier(client SQSSender, queueURL string, clock types.Clock, logger types.Logger) *SQSNotifier {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &SQSNotifier{
		client:   client,
		queueURL: queueURL,
		clock:    clock,
		logger:   logger,
	}
}

// Send publishes a ReminderMessage for bookingID.
func (p *SQSNotifier) Send(ctx context.Context, bookingID string) error {
	msg := newMessage(bookingID, p.clock)
	body, err := msg.encode()
	if err != nil {
		return err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"booking_id": {DataType: aws.String("String"), StringValue: aws.String(bookingID)},
		},
	}

	out, err := p.client.SendMessage(ctx, input)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamBroker, "failed to publish reminder to SQS", err).
			WithDetails(map[string]any{"booking_id": bookingID})
	}

	p.logger.Info("reminder message published",
		"booking_id", bookingID,
		"message_id", msg.MessageID,
		"sqs_message_id", aws.ToString(out.MessageId),
	)
	return nil
}
