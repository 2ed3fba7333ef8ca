package notify

import (
	"context"
	"sync"
	"time"

	"github.com/concave-dev/trail/internal/database"
	"github.com/concave-dev/trail/internal/logging"
	"github.com/concave-dev/trail/internal/metrics"
)

// AsyncListener adapts a Publisher to database.EventListener. Events are
// queued in a bounded buffer and published by one goroutine, so database
// writers never wait on the broker. Events arriving while the buffer is
// full are dropped and counted.
type AsyncListener struct {
	publisher Publisher
	timeout   time.Duration
	events    chan Event

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncListener starts the publishing goroutine.
func NewAsyncListener(publisher Publisher, cfg *Config) *AsyncListener {
	l := &AsyncListener{
		publisher: publisher,
		timeout:   cfg.PublishTimeout,
		events:    make(chan Event, cfg.BufferSize),
		done:      make(chan struct{}),
	}
	go l.run()
	return l
}

// Listener returns the callback to pass to database.New.
func (l *AsyncListener) Listener() database.EventListener {
	return l.Listen
}

// Listen queues one event without blocking.
func (l *AsyncListener) Listen(eventType string, content any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}

	ev := Event{Type: eventType, Content: content, Timestamp: time.Now().UTC()}
	select {
	case l.events <- ev:
	default:
		metrics.EventsDropped.WithLabelValues(eventType).Inc()
		logging.Warn("Notify: Event buffer full, dropped %s event", eventType)
	}
}

func (l *AsyncListener) run() {
	defer close(l.done)
	for ev := range l.events {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		err := l.publisher.Publish(ctx, ev)
		cancel()

		if err != nil {
			metrics.EventsDropped.WithLabelValues(ev.Type).Inc()
			logging.Error("Notify: Failed to publish %s event: %v", ev.Type, err)
			continue
		}
		metrics.EventsPublished.WithLabelValues(ev.Type).Inc()
	}
}

// Close stops accepting events, publishes what is buffered and closes the
// publisher.
func (l *AsyncListener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.events)
	l.mu.Unlock()

	<-l.done
	return l.publisher.Close()
}
