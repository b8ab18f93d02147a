package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher publishes events to a durable topic exchange with the event
// name as routing key, so consumers can bind to e.g. "bathroom_*".
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex
	ch *amqp.Channel
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: exchange declare failed: %w", err)
	}

	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event failed: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.EmittedAt,
		Type:         event.Event,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, event.Event, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq: publish failed: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.ch.Close()
	return p.conn.Close()
}
