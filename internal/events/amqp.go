package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes TripPublished events to a durable topic exchange.
type AMQPPublisher struct {
	exchange string
	log      *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   channel
}

// Dial connects to url and declares the topic exchange.
// A nil log uses slog.Default().
func Dial(url, exchange string, log *slog.Logger) (*AMQPPublisher, error) {
	if log == nil {
		log = slog.Default()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events.Dial: dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events.Dial: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("events.Dial: declare exchange %q: %w", exchange, err)
	}
	return &AMQPPublisher{exchange: exchange, log: log, conn: conn, ch: ch}, nil
}

// TripPublished implements publish.Notifier.
func (p *AMQPPublisher) TripPublished(ctx context.Context, e TripPublished) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events.AMQPPublisher.TripPublished: marshal: %w", err)
	}

	p.mu.Lock()
	ch := p.ch
	p.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("events.AMQPPublisher.TripPublished: channel closed")
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(publishCtx, p.exchange, e.RoutingKey(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.TripID.String(),
		Timestamp:    e.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("events.AMQPPublisher.TripPublished: %w", err)
	}

	p.log.DebugContext(ctx, "trip event published", "trip_id", e.TripID, "routing_key", e.RoutingKey())
	return nil
}

// Close closes the channel and connection. Safe to call more than once.
func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Discard drops every event. Used when no broker is configured.
type Discard struct{}

// TripPublished implements publish.Notifier.
func (Discard) TripPublished(context.Context, TripPublished) error { return nil }
