package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultExchange is the topic exchange used when none is configured.
const DefaultExchange = "voluntahub.realtime"

// AMQP fans messages out across instances through a RabbitMQ topic exchange.
// Each process binds one exclusive, auto-delete queue to every routing key
// and relays deliveries into a local Memory broker.
type AMQP struct {
	exchange string
	pub      *amqp.Channel
	sub      *amqp.Channel
	local    *Memory
	log      *zap.Logger

	pubMu sync.Mutex
	wg    sync.WaitGroup
}

// NewAMQP declares the exchange and this process's queue on conn. The
// connection is owned by the caller and is not closed by Close.
func NewAMQP(conn *amqp.Connection, exchange string, logger *zap.Logger) (*AMQP, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pub, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp publish channel: %w", err)
	}
	if err := pub.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	); err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}

	sub, err := conn.Channel()
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("amqp subscribe channel: %w", err)
	}
	q, err := sub.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // autoDelete
		true,  // exclusive
		false, // noWait
		nil,   // args
	)
	if err == nil {
		err = sub.QueueBind(q.Name, "#", exchange, false, nil)
	}
	var deliveries <-chan amqp.Delivery
	if err == nil {
		deliveries, err = sub.Consume(q.Name, "", true, true, false, false, nil)
	}
	if err != nil {
		_ = sub.Close()
		_ = pub.Close()
		return nil, fmt.Errorf("amqp queue setup: %w", err)
	}

	a := &AMQP{
		exchange: exchange,
		pub:      pub,
		sub:      sub,
		local:    NewMemory(DefaultBuffer, logger),
		log:      logger,
	}
	a.wg.Add(1)
	go a.relay(deliveries)
	return a, nil
}

func (a *AMQP) Kind() string { return KindAMQP }

func (a *AMQP) relay(deliveries <-chan amqp.Delivery) {
	defer a.wg.Done()
	for d := range deliveries {
		var msg Message
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			a.log.Warn("amqp relay: bad payload", zap.String("routing_key", d.RoutingKey), zap.Error(err))
			continue
		}
		if err := a.local.Publish(context.Background(), d.RoutingKey, msg); err != nil {
			return
		}
	}
}

// Publish sends msg to the exchange with channel as routing key.
func (a *AMQP) Publish(ctx context.Context, channel string, msg Message) error {
	msg.Channel = channel
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	a.pubMu.Lock()
	defer a.pubMu.Unlock()
	err = a.pub.PublishWithContext(ctx,
		a.exchange, // exchange
		channel,    // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   msg.ID,
			Type:        msg.Event,
			Timestamp:   time.Now().UTC(),
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

func (a *AMQP) Subscribe(channels ...string) Subscription {
	return a.local.Subscribe(channels...)
}

// Close closes both channels, which ends the relay, then the local broker.
func (a *AMQP) Close() error {
	subErr := a.sub.Close()
	pubErr := a.pub.Close()
	a.wg.Wait()
	_ = a.local.Close()
	if subErr != nil {
		return subErr
	}
	return pubErr
}
