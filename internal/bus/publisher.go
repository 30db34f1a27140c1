package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fleetbench/internal/common"
	"github.com/ternarybob/fleetbench/internal/interfaces"
)

// Publisher publishes JSON messages to a durable topic exchange. The channel
// is opened lazily and reopened after a broker disconnect.
type Publisher struct {
	mu       sync.Mutex
	conn     *Connection
	config   *common.BusConfig
	logger   arbor.ILogger
	exchange string
	channel  *amqp.Channel
}

// NewPublisher creates a publisher bound to the given exchange.
func NewPublisher(conn *Connection, config *common.BusConfig, exchange string, logger arbor.ILogger) interfaces.Publisher {
	return &Publisher{
		conn:     conn,
		config:   config,
		logger:   logger,
		exchange: exchange,
	}
}

func (p *Publisher) ensureChannel() (*amqp.Channel, error) {
	if p.channel != nil && !p.channel.IsClosed() {
		return p.channel, nil
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", p.exchange, err)
	}
	p.channel = ch
	return ch, nil
}

// Publish serializes the message as JSON and publishes it persistently under
// the given routing key.
func (p *Publisher) Publish(ctx context.Context, routingKey string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.ensureChannel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.PublishTimeoutDuration())
	defer cancel()

	err = ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		// Drop the channel so the next publish redials.
		p.channel = nil
		return fmt.Errorf("failed to publish to %s/%s: %w", p.exchange, routingKey, err)
	}

	p.logger.Debug().
		Str("exchange", p.exchange).
		Str("routing_key", routingKey).
		Int("bytes", len(body)).
		Msg("Published message")
	return nil
}

// Close releases the publish channel.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil && !p.channel.IsClosed() {
		if err := p.channel.Close(); err != nil {
			return fmt.Errorf("failed to close publish channel: %w", err)
		}
	}
	p.channel = nil
	return nil
}
