// Package pubsub delivers real-time messages to named channels.
//
// A Broker is the only way notifications leave the resolver layer. The
// in-process Memory broker is always the final hop to local subscribers;
// the Redis and AMQP brokers publish through an external server so every
// instance behind a load balancer relays the message to its own Memory.
//
// Delivery is best effort: a subscriber that is not keeping up has
// messages dropped rather than blocking publishers.
package pubsub

import (
	"context"
	"encoding/json"
)

// Broker kinds accepted by configuration.
const (
	KindMemory = "memory"
	KindRedis  = "redis"
	KindAMQP   = "amqp"
)

// Message is one event addressed to one channel. The same ID is reused when
// an event is published to several channels so receivers can drop repeats.
type Message struct {
	ID      string          `json:"id"`
	Event   string          `json:"event"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// Subscription receives messages for the channels it was opened with.
type Subscription interface {
	// C is closed when the subscription or its broker is closed.
	C() <-chan Message
	Close()
}

// Broker publishes messages and opens subscriptions.
type Broker interface {
	Publish(ctx context.Context, channel string, msg Message) error
	Subscribe(channels ...string) Subscription
	Kind() string
	Close() error
}
