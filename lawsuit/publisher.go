package lawsuit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// DocumentPublisher hands assembled documents to the rendering/storage
// collaborator. Publishing is best-effort: a failure is logged by the
// caller and never rolls back the escalation state transition.
type DocumentPublisher interface {
	PublishDocument(ctx context.Context, doc *Document) error
}

// Publisher publishes assembled lawsuit documents to RabbitMQ.
type Publisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

// NewPublisher connects to RabbitMQ and declares the exchange.
func NewPublisher(amqpURL, exchangeName, routingKey string) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:       conn,
		channel:    channel,
		exchange:   exchangeName,
		routingKey: routingKey,
	}, nil
}

// PublishDocument publishes one assembled document as persistent JSON.
func (p *Publisher) PublishDocument(ctx context.Context, doc *Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal lawsuit document: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err = p.channel.Publish(
		p.exchange,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    doc.ClaimID,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish lawsuit document for claim %s: %w", doc.ClaimID, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return fmt.Errorf("failed to close channel: %w", err)
	}
	if err := p.conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}
