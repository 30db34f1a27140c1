package bus

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fleetbench/internal/common"
	"github.com/ternarybob/fleetbench/internal/interfaces"
)

// Subscriber consumes a durable queue bound to a topic exchange. Deliveries
// are acknowledged only after the handler returns nil, so a crash between
// delivery and persistence redelivers the message.
type Subscriber struct {
	conn     *Connection
	config   *common.BusConfig
	logger   arbor.ILogger
	exchange string
	queue    string
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSubscriber creates a subscriber for the given exchange and queue. The
// queue is bound with a catch-all routing key.
func NewSubscriber(conn *Connection, config *common.BusConfig, exchange, queue string, logger arbor.ILogger) interfaces.Subscriber {
	return &Subscriber{
		conn:     conn,
		config:   config,
		logger:   logger,
		exchange: exchange,
		queue:    queue,
		done:     make(chan struct{}),
	}
}

func (s *Subscriber) setup() (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := s.conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	if err := ch.ExchangeDeclare(s.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange %s: %w", s.exchange, err)
	}
	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("failed to declare queue %s: %w", s.queue, err)
	}
	if err := ch.QueueBind(s.queue, "#", s.exchange, false, nil); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("failed to bind queue %s: %w", s.queue, err)
	}

	deliveries, err := ch.Consume(s.queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("failed to consume queue %s: %w", s.queue, err)
	}
	return ch, deliveries, nil
}

// Subscribe starts the consume loop in the background. The loop reconnects
// after broker failures and stops when the context is canceled or Close is
// called.
func (s *Subscriber) Subscribe(ctx context.Context, handler interfaces.MessageHandler) error {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		defer close(s.done)
		for {
			if ctx.Err() != nil {
				return
			}

			ch, deliveries, err := s.setup()
			if err != nil {
				s.logger.Warn().Err(err).Str("queue", s.queue).Msg("Bus consume setup failed, retrying")
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.config.ReconnectDelayDuration()):
					continue
				}
			}

			s.logger.Info().Str("queue", s.queue).Str("exchange", s.exchange).Msg("Consuming queue")
			s.consume(ctx, deliveries, handler)
			ch.Close()
		}
	}()
	return nil
}

func (s *Subscriber) consume(ctx context.Context, deliveries <-chan amqp.Delivery, handler interfaces.MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				// Channel closed by the broker, the outer loop redials.
				return
			}
			if err := handler(ctx, d.Body); err != nil {
				s.logger.Warn().Err(err).Str("queue", s.queue).Msg("Message handler failed, requeueing")
				if nackErr := d.Nack(false, true); nackErr != nil {
					s.logger.Warn().Err(nackErr).Msg("Failed to nack delivery")
				}
				continue
			}
			if err := d.Ack(false); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to ack delivery")
			}
		}
	}
}

// Close stops the consume loop and waits for it to drain.
func (s *Subscriber) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}
