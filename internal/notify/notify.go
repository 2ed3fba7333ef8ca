// Package notify delivers client events (member registered, batch
// completed, ...) to subscribers outside the process. Events are published
// to a Kafka topic keyed by event type; when no brokers are configured the
// NopPublisher discards them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/concave-dev/trail/internal/logging"
)

// Event is one client event.
type Event struct {
	Type      string    `json:"type"`
	Content   any       `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher sends events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Config selects the event sink.
type Config struct {
	Brokers        []string      `json:"brokers" mapstructure:"brokers"`
	Topic          string        `json:"topic" mapstructure:"topic"`
	BufferSize     int           `json:"bufferSize" mapstructure:"buffer-size"`
	PublishTimeout time.Duration `json:"publishTimeout" mapstructure:"publish-timeout"`
}

// DefaultConfig publishes nowhere.
func DefaultConfig() *Config {
	return &Config{
		Topic:          "trail-events",
		BufferSize:     1024,
		PublishTimeout: 10 * time.Second,
	}
}

// Enabled reports whether any broker is configured.
func (c *Config) Enabled() bool {
	return len(c.Brokers) > 0
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.Enabled() && c.Topic == "" {
		return fmt.Errorf("notify config: topic is required when brokers are set")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("notify config: buffer size must be positive, got %d", c.BufferSize)
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("notify config: publish timeout must be positive, got %v", c.PublishTimeout)
	}
	return nil
}

// NewPublisher returns a Kafka publisher when brokers are configured and a
// NopPublisher otherwise.
func NewPublisher(cfg *Config) Publisher {
	if !cfg.Enabled() {
		return NopPublisher{}
	}
	return NewKafkaPublisher(cfg)
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// messageWriter is the part of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes each event as a JSON message keyed by event type,
// so events of one type keep their order within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher for cfg.Brokers and cfg.Topic.
func NewKafkaPublisher(cfg *Config) *KafkaPublisher {
	logging.Info("Notify: Publishing events to topic %s on %v", cfg.Topic, cfg.Brokers)
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
			WriteTimeout: cfg.PublishTimeout,
		},
	}
}

// Publish writes ev synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", ev.Type, err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Type),
		Value: data,
		Time:  ev.Timestamp,
	})
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
