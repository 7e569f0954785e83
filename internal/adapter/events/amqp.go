package events

import (
	"context"
	"encoding/json"
	"fmt"

	"core-ledger/internal/core/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes events to a topic exchange, routed by event type
// (e.g. "transaction.created").
type AMQPPublisher struct {
	ch       Channel
	conn     *amqp.Connection
	exchange string
	log      zerolog.Logger
}

// NewAMQPPublisher wraps an open channel.
func NewAMQPPublisher(ch Channel, exchange string, log zerolog.Logger) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange, log: log}
}

// DialAMQP connects to the broker and declares a durable topic exchange.
func DialAMQP(url, exchange string, log zerolog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}

	log.Info().Str("exchange", exchange).Msg("AMQP event publisher connected")

	p := NewAMQPPublisher(ch, exchange, log)
	p.conn = conn
	return p, nil
}

// Publish implements ports.EventPublisher.
func (p *AMQPPublisher) Publish(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("amqp: marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, msg); err != nil {
		return fmt.Errorf("amqp: publish %s: %w", event.Type, err)
	}

	p.log.Debug().Str("event_id", event.ID.String()).Str("routing_key", string(event.Type)).Msg("event published")
	return nil
}

// Close closes the channel and, when dialed here, the connection.
func (p *AMQPPublisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
