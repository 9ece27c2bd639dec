// Package notifier emits engine events (validation results, capacity
// exhaustion, allocator alerts) to a RabbitMQ topic exchange. Delivery
// beyond the broker is the consumers' concern.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeName = "attendly.events"
	exchangeKind = "topic"
)

// Routing keys published by the engine.
const (
	KeyValidationSucceeded = "validation.succeeded"
	KeyValidationFailed    = "validation.failed"
	KeyCapacityExhausted   = "capacity.exhausted"
	KeyAllocatorExhausted  = "allocator.exhausted"
)

type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp.Dial -> %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("conn.Channel -> %w", err)
	}

	if err = ch.ExchangeDeclare(exchangeName, exchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("ch.ExchangeDeclare -> %w", err)
	}

	return &Publisher{
		conn:    conn,
		channel: ch,
	}, nil
}

// Publish sends one JSON message. A nil publisher is a disabled publisher;
// the engine treats notifications as best-effort.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	if p == nil {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("json.Marshal -> %w", err)
	}

	err = p.channel.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("p.channel.PublishWithContext -> %w", err)
	}

	return nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.channel.Close()
	p.conn.Close()
}
