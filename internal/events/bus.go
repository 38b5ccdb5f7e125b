package events

import (
	"context"
	"sync"

	"github.com/wolfman30/clinicdesk/pkg/logging"
)

const defaultBuffer = 32

// Handler consumes one delivered envelope.
type Handler func(ctx context.Context, env Envelope) error

// Publisher is the narrow interface workflow components depend on.
type Publisher interface {
	Publish(aggregate string, evt Event, opts ...EnvelopeOption) (Envelope, error)
}

// Bus fans events out to in-process subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	logger *logging.Logger
}

func NewBus(logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.Default()
	}
	return &Bus{subs: make(map[uint64]*Subscription), logger: logger}
}

// Subscription receives envelopes matching its type filter.
type Subscription struct {
	id     uint64
	bus    *Bus
	types  map[string]struct{}
	ch     chan Envelope
	closed bool
}

// Subscribe registers a subscriber. An empty types list receives everything;
// buffer <= 0 uses the default size.
func (b *Bus) Subscribe(buffer int, types ...string) *Subscription {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	sub := &Subscription{bus: b, ch: make(chan Envelope, buffer)}
	if len(types) > 0 {
		sub.types = make(map[string]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	return sub
}

// Publish wraps evt in an envelope and offers it to every matching subscriber.
func (b *Bus) Publish(aggregate string, evt Event, opts ...EnvelopeOption) (Envelope, error) {
	env, err := newEnvelope(aggregate, evt, opts...)
	if err != nil {
		return Envelope{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !sub.matches(env.EventType) {
			continue
		}
		select {
		case sub.ch <- env:
		default:
			b.logger.Warn("events: subscriber buffer full, dropping event",
				"subscriber", sub.id, "event_type", env.EventType, "event_id", env.EventID)
		}
	}
	return env, nil
}

// Subscribers returns the number of open subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (s *Subscription) matches(eventType string) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// C returns the delivery channel. It is closed by Close.
func (s *Subscription) C() <-chan Envelope {
	return s.ch
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	delete(s.bus.subs, s.id)
	close(s.ch)
}

// Drain invokes handler for each envelope until ctx is done or the
// subscription is closed. Handler errors are logged and do not stop the loop.
func (s *Subscription) Drain(ctx context.Context, handler Handler) {
	if handler == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-s.ch:
			if !ok {
				return
			}
			if err := handler(ctx, env); err != nil {
				s.bus.logger.Error("events: handler failed", "error", err, "event_id", env.EventID, "event_type", env.EventType)
				continue
			}
			s.bus.logger.Debug("events: delivered", "event_id", env.EventID, "event_type", env.EventType)
		}
	}
}
