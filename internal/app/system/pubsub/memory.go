package pubsub

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// DefaultBuffer is the per-subscription queue length.
const DefaultBuffer = 64

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("pubsub: broker closed")

// Memory is an in-process Broker.
type Memory struct {
	mu     sync.RWMutex
	subs   map[string]map[*memSub]struct{}
	buffer int
	closed bool
	log    *zap.Logger
}

// NewMemory returns an empty in-process broker. buffer <= 0 uses DefaultBuffer.
func NewMemory(buffer int, logger *zap.Logger) *Memory {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{
		subs:   make(map[string]map[*memSub]struct{}),
		buffer: buffer,
		log:    logger,
	}
}

func (m *Memory) Kind() string { return KindMemory }

// Publish delivers msg to every current subscriber of channel. It never
// blocks: full subscriber queues drop the message.
func (m *Memory) Publish(_ context.Context, channel string, msg Message) error {
	msg.Channel = channel

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	for s := range m.subs[channel] {
		select {
		case s.ch <- msg:
		default:
			m.log.Warn("dropping message for slow subscriber",
				zap.String("channel", channel),
				zap.String("event", msg.Event),
				zap.String("message_id", msg.ID))
		}
	}
	return nil
}

// Subscribe opens a subscription covering all of channels. With no channels
// the subscription never receives anything but is still valid to Close.
func (m *Memory) Subscribe(channels ...string) Subscription {
	s := &memSub{m: m, ch: make(chan Message, m.buffer), channels: dedupe(channels)}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		close(s.ch)
		s.done = true
		return s
	}
	for _, c := range s.channels {
		set, ok := m.subs[c]
		if !ok {
			set = make(map[*memSub]struct{})
			m.subs[c] = set
		}
		set[s] = struct{}{}
	}
	return s
}

// Subscribers returns how many subscriptions are registered on channel.
func (m *Memory) Subscribers(channel string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[channel])
}

// Close ends every subscription. Later publishes return ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	seen := make(map[*memSub]struct{})
	for _, set := range m.subs {
		for s := range set {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			s.done = true
			close(s.ch)
		}
	}
	m.subs = map[string]map[*memSub]struct{}{}
	return nil
}

func (m *Memory) remove(s *memSub) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.done {
		return
	}
	for _, c := range s.channels {
		if set, ok := m.subs[c]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(m.subs, c)
			}
		}
	}
	s.done = true
	close(s.ch)
}

type memSub struct {
	m        *Memory
	ch       chan Message
	channels []string
	done     bool // guarded by m.mu
}

func (s *memSub) C() <-chan Message { return s.ch }

func (s *memSub) Close() { s.m.remove(s) }

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
