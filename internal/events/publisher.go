// Package events publishes outfit lifecycle events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"makemyoutfit/internal/domain"
	"makemyoutfit/internal/infra"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends each event as JSON to a topic exchange under the routing
// key "outfit.<kind>".
type Publisher struct {
	mu       sync.Mutex
	ch       channel
	conn     *amqp.Connection
	exchange string
	logger   *infra.Logger
}

// Dial connects to url and declares exchange as a durable topic exchange.
func Dial(url, exchange string, logger *infra.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("events: declare exchange %s: %w", exchange, err)
	}
	p := newPublisher(ch, exchange, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, logger *infra.Logger) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, logger: infra.OrNop(logger)}
}

func (p *Publisher) Publish(ctx context.Context, evt domain.OutfitEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}
	key := RoutingKey(evt.Kind)

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.ID,
		Timestamp:    evt.CreatedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", key, err)
	}
	p.logger.Debug().Str("routing_key", key).Str("outfit_id", evt.OutfitID).Msg("events: published")
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// RoutingKey returns the topic routing key for kind.
func RoutingKey(kind domain.HistoryKind) string {
	return "outfit." + string(kind)
}

// Nop discards events. It is used when AMQP_URL is unset.
type Nop struct{}

func (Nop) Publish(ctx context.Context, evt domain.OutfitEvent) error { return nil }

var (
	_ domain.EventPublisher = (*Publisher)(nil)
	_ domain.EventPublisher = Nop{}
	_ channel               = (*amqp.Channel)(nil)
)
