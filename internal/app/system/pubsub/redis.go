package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRedisPrefix namespaces channel names on a shared Redis.
const DefaultRedisPrefix = "voluntahub:"

// Redis fans messages out across instances with Redis PUBLISH and a single
// pattern subscription per process that relays into a local Memory broker.
type Redis struct {
	client *redis.Client
	prefix string
	local  *Memory
	ps     *redis.PubSub
	log    *zap.Logger
	wg     sync.WaitGroup
}

// NewRedis subscribes to prefix* on client and starts the relay goroutine.
// The client is owned by the caller and is not closed by Close.
func NewRedis(ctx context.Context, client *redis.Client, prefix string, logger *zap.Logger) (*Redis, error) {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ps := client.PSubscribe(ctx, prefix+"*")
	// Wait for the subscription confirmation so nothing published after
	// NewRedis returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis psubscribe: %w", err)
	}

	r := &Redis{
		client: client,
		prefix: prefix,
		local:  NewMemory(DefaultBuffer, logger),
		ps:     ps,
		log:    logger,
	}
	r.wg.Add(1)
	go r.relay()
	return r, nil
}

func (r *Redis) Kind() string { return KindRedis }

func (r *Redis) relay() {
	defer r.wg.Done()
	for m := range r.ps.Channel() {
		var msg Message
		if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
			r.log.Warn("redis relay: bad payload", zap.String("channel", m.Channel), zap.Error(err))
			continue
		}
		channel := strings.TrimPrefix(m.Channel, r.prefix)
		if err := r.local.Publish(context.Background(), channel, msg); err != nil {
			return
		}
	}
}

// Publish sends msg to every instance subscribed to channel.
func (r *Redis) Publish(ctx context.Context, channel string, msg Message) error {
	msg.Channel = channel
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.Publish(ctx, r.prefix+channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (r *Redis) Subscribe(channels ...string) Subscription {
	return r.local.Subscribe(channels...)
}

// Close stops the relay and ends all local subscriptions.
func (r *Redis) Close() error {
	err := r.ps.Close()
	r.wg.Wait()
	_ = r.local.Close()
	return err
}
