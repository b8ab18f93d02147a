package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

const publishTimeout = 5 * time.Second

// Event is one mirrored broadcast.
type Event struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// Publisher delivers events to an external broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Broadcaster is the in-process fan-out being mirrored.
type Broadcaster interface {
	Broadcast(event string, data any)
}

// Mirror forwards every broadcast to the wrapped Broadcaster and, on a
// background goroutine, to a Publisher. The hand-off buffer is bounded;
// when it is full the event is dropped and logged.
type Mirror struct {
	inner  Broadcaster
	pub    Publisher
	logger *slog.Logger

	mu     sync.RWMutex
	events chan Event
	closed bool
	done   chan struct{}
}

// NewMirror starts the publishing goroutine. Call Close to stop it.
func NewMirror(inner Broadcaster, pub Publisher, buffer int, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer < 1 {
		buffer = 1
	}
	m := &Mirror{
		inner:  inner,
		pub:    pub,
		logger: logger,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Mirror) Broadcast(event string, data any) {
	m.inner.Broadcast(event, data)

	payload, err := json.Marshal(data)
	if err != nil {
		m.logger.Error("failed to marshal mirrored event", "event", event, "error", err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.events <- Event{Event: event, Data: payload, EmittedAt: time.Now().UTC()}:
	default:
		m.logger.Warn("broker buffer full, dropping event", "event", event)
	}
}

// Close drains pending events, stops the goroutine and closes the
// publisher.
func (m *Mirror) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.events)
	m.mu.Unlock()

	<-m.done
	return m.pub.Close()
}

func (m *Mirror) run() {
	defer close(m.done)
	for ev := range m.events {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := m.pub.Publish(ctx, ev); err != nil {
			m.logger.Warn("failed to publish event", "event", ev.Event, "error", err)
		}
		cancel()
	}
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
