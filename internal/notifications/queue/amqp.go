package queue

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"carwash/internal/reminder"
	"carwash/internal/types"
)

// AMQPChannel is the subset of *amqp.Channel used for publishing.
type AMQPChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPNotifier publishes due reminders to a RabbitMQ topic exchange under
// RoutingKey.
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       AMQPChannel
	exchange string
	clock    types.Clock
	logger   types.Logger
}

var _ reminder.Notifier = (*AMQPNotifier)(nil)

// DialAMQP connects to url, opens a channel and declares exchange as a
// durable topic exchange.
func DialAMQP(url, exchange string, clock types.Clock, logger types.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	n := NewAMQPNotifier(ch, exchange, clock, logger)
	n.conn = conn
	return n, nil
}

// NewAMQPNotifier creates an AMQPNotifier on an already open channel.
func NewAMQPNotifier(ch AMQPChannel, exchange string, clock types.Clock, logger types.Logger) *AMQPNotifier {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &AMQPNotifier{ch: ch, exchange: exchange, clock: clock, logger: logger}
}

// Send publishes a persistent ReminderMessage for bookingID.
func (p *AMQPNotifier) Send(ctx context.Context, bookingID string) error {
	msg := newMessage(bookingID, p.clock)
	body, err := msg.encode()
	if err != nil {
		return err
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.MessageID,
		Timestamp:    msg.FireAt,
		Body:         body,
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamBroker, "failed to publish reminder to RabbitMQ", err).
			WithDetails(map[string]any{"booking_id": bookingID, "exchange": p.exchange})
	}

	p.logger.Info("reminder message published",
		"booking_id", bookingID,
		"message_id", msg.MessageID,
		"exchange", p.exchange,
	)
	return nil
}

// Close closes the channel and, when owned, the connection.
func (p *AMQPNotifier) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
