// Package broker publishes recorded visit events to Kafka so downstream
// consumers can react to citations without polling the database.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"citewatch/internal/events"
)

// messageWriter is the subset of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes JSON messages to one topic.
type Producer struct {
	w      messageWriter
	topic  string
	logger *slog.Logger
}

// NewProducer creates a producer that hashes keys across partitions.
func NewProducer(brokers []string, topic string, logger *slog.Logger) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 5 * time.Second,
	}, topic, logger)
}

func newProducer(w messageWriter, topic string, logger *slog.Logger) *Producer {
	return &Producer{w: w, topic: topic, logger: logger}
}

// Publish marshals value and writes it under key.
func (p *Producer) Publish(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: b,
		Time:  time.Now(),
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write to topic %s: %w", p.topic, err)
	}
	return nil
}

// Start implements cartridge.BackgroundWorker. The writer connects lazily.
func (p *Producer) Start() error {
	p.logger.Info("Event broker producer ready", slog.String("topic", p.topic))
	return nil
}

// Stop flushes pending writes and closes the writer.
func (p *Producer) Stop() {
	if err := p.w.Close(); err != nil {
		p.logger.Error("Failed to close event broker producer", slog.Any("error", err))
	}
}

// EventVisitRecorded is the message type of a stored VisitEvent.
const EventVisitRecorded = "visit.recorded"

// VisitMessage is the wire form of a recorded visit.
type VisitMessage struct {
	Type        string    `json:"type"`
	ID          uint      `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	TrafficType string    `json:"traffic_type"`
	Platform    string    `json:"ai_platform"`
	URL         string    `json:"url"`
	Referer     string    `json:"referer,omitempty"`
	SearchQuery string    `json:"search_query,omitempty"`
	Country     string    `json:"country_code,omitempty"`
	Browser     string    `json:"browser"`
	OS          string    `json:"os"`
	Device      string    `json:"device"`
	PostID      *uint     `json:"post_id,omitempty"`
}

// NewVisitMessage flattens event, including the parsed user agent.
func NewVisitMessage(event events.VisitEvent) VisitMessage {
	agent := event.ParsedUserAgent()
	return VisitMessage{
		Type:        EventVisitRecorded,
		ID:          event.ID,
		Timestamp:   event.Timestamp.UTC(),
		TrafficType: string(event.TrafficType),
		Platform:    string(event.AIPlatform),
		URL:         event.URL,
		Referer:     events.StringValue(event.Referer),
		SearchQuery: events.StringValue(event.SearchQuery),
		Country:     event.Country(),
		Browser:     agent.Browser,
		OS:          agent.OS,
		Device:      agent.Device,
		PostID:      event.PostID,
	}
}

// EventPublisher adapts a Producer to events.Publisher. Messages are keyed
// by platform so each platform's events stay ordered within a partition.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher wraps producer.
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

var _ events.Publisher = (*EventPublisher)(nil)

// Publish implements events.Publisher.
func (p *EventPublisher) Publish(ctx context.Context, event events.VisitEvent) error {
	return p.producer.Publish(ctx, string(event.AIPlatform), NewVisitMessage(event))
}
