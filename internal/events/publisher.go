package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const EventTypeSearchCompleted = "search.completed"

// SearchCompleted is emitted after every pipeline run.
type SearchCompleted struct {
	EventType       string    `json:"event_type"`
	EventID         string    `json:"event_id"`
	Source          string    `json:"source"`
	OwnerID         int64     `json:"owner_id"`
	Query           string    `json:"query"`
	TranslatedQuery string    `json:"translated_query"`
	Outcome         string    `json:"outcome"`
	ProductIDs      []string  `json:"product_ids"`
	CostUSD         float64   `json:"cost_usd"`
	DurationMs      int64     `json:"duration_ms"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Publisher emits search events.
type Publisher interface {
	PublishSearchCompleted(ctx context.Context, event *SearchCompleted) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a new Kafka producer
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) PublishSearchCompleted(ctx context.Context, event *SearchCompleted) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("owner-%d", event.OwnerID)),
		Value: value,
		Time:  event.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	log.Debug().Str("event_id", event.EventID).Str("type", event.EventType).Msg("Published event")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishSearchCompleted(context.Context, *SearchCompleted) error { return nil }
func (NopPublisher) Close() error                                                  { return nil }

// MultiPublisher fans every event out to several publishers. A failing
// publisher does not stop the others; the first error is returned.
type MultiPublisher []Publisher

func (m MultiPublisher) PublishSearchCompleted(ctx context.Context, event *SearchCompleted) error {
	var first error
	for _, p := range m {
		if err := p.PublishSearchCompleted(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiPublisher) Close() error {
	var first error
	for _, p := range m {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
