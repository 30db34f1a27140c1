package interfaces

import "context"

// Publisher sends JSON-serialized messages to a topic exchange. The
// implementation owns channel recovery: a publish after a bus loss redeclares
// the channel and retries once; failures surface as errors for the caller to
// retry on its own cadence.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
	Close() error
}

// MessageHandler processes one delivery. Returning nil acknowledges the
// message; returning an error leaves it unacked for redelivery.
type MessageHandler func(ctx context.Context, body []byte) error

// Subscriber consumes a queue bound to a topic exchange and dispatches each
// delivery to a handler.
type Subscriber interface {
	Subscribe(ctx context.Context, handler MessageHandler) error
	Close() error
}
