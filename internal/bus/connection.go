package bus

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fleetbench/internal/common"
)

// Connection wraps a single AMQP connection shared by the publishers and
// subscribers. A lost connection is redialed lazily on the next Channel call.
type Connection struct {
	mu     sync.Mutex
	config *common.BusConfig
	logger arbor.ILogger
	conn   *amqp.Connection
}

// NewConnection creates a connection manager for the configured broker. The
// broker is not dialed until the first channel is requested.
func NewConnection(config *common.BusConfig, logger arbor.ILogger) *Connection {
	return &Connection{
		config: config,
		logger: logger,
	}
}

// amqpURL builds the dial URL from the configured endpoint, injecting
// credentials when they are not already part of the endpoint.
func (c *Connection) amqpURL() (string, error) {
	endpoint := c.config.Endpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = "amqp://" + endpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid bus endpoint: %w", err)
	}
	if u.User == nil && c.config.User != "" {
		u.User = url.UserPassword(c.config.User, c.config.Password)
	}
	return u.String(), nil
}

// Channel returns a fresh channel, dialing the broker if needed.
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() {
		addr, err := c.amqpURL()
		if err != nil {
			return nil, err
		}
		conn, err := amqp.Dial(addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to message bus: %w", err)
		}
		c.conn = conn
		c.logger.Info().Str("endpoint", c.config.Endpoint).Msg("Connected to message bus")
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return ch, nil
}

// Close closes the underlying connection if one is open.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("failed to close bus connection: %w", err)
		}
	}
	c.conn = nil
	return nil
}
