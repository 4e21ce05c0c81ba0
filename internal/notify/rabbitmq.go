package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Shivanand-hulikatti/offering-enrollment/internal/model"
)

// ExchangeKind of the notification exchange. Consumers bind with patterns
// such as "enrollment.*" or "offering.cancelled".
const ExchangeKind = "topic"

// Channel is the subset of *amqp.Channel the sink uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitSink publishes events to a topic exchange, routed by event type.
type RabbitSink struct {
	conn     *amqp.Connection
	channel  Channel
	exchange string
}

// NewRabbitSink dials url and declares a durable topic exchange.
func NewRabbitSink(url, exchange string) (*RabbitSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	return &RabbitSink{conn: conn, channel: ch, exchange: exchange}, nil
}

// NewRabbitSinkWithChannel wraps an already prepared channel.
func NewRabbitSinkWithChannel(ch Channel, exchange string) *RabbitSink {
	return &RabbitSink{channel: ch, exchange: exchange}
}

// Deliver publishes ev as a persistent JSON message.
func (s *RabbitSink) Deliver(ctx context.Context, ev model.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = s.channel.PublishWithContext(ctx,
		s.exchange,
		string(ev.Type),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ID,
			Timestamp:    ev.OccurredAt,
			Type:         string(ev.Type),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close closes the channel and, when owned, the connection.
func (s *RabbitSink) Close() error {
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			return err
		}
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
