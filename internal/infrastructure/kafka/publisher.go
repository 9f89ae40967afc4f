package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ticketguard/scoring/pkg/events"
	"github.com/ticketguard/scoring/pkg/kafka"
)

// Header keys set on every published message.
const (
	HeaderEventType = "event-type"
	HeaderSource    = "source"
)

// MessageWriter is the subset of kafka.Producer the publisher needs.
type MessageWriter interface {
	Publish(ctx context.Context, topic string, messages ...kafka.Message) error
}

// EventPublisher implements port.EventPublisher on Kafka. Events are keyed
// by aggregate id so one aggregate's events stay ordered.
type EventPublisher struct {
	writer MessageWriter
	topic  string
	source string
	logger *slog.Logger
}

// NewEventPublisher creates a publisher writing envelopes to topic. source
// identifies this process in every envelope.
func NewEventPublisher(writer MessageWriter, topic, source string, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{writer: writer, topic: topic, source: source, logger: logger}
}

// Publish sends all events in one batch.
func (p *EventPublisher) Publish(ctx context.Context, evts ...events.DomainEvent) error {
	if len(evts) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(evts))
	for _, evt := range evts {
		env := events.NewEnvelope(evt, p.source)
		data, err := env.Marshal()
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(env.AggregateID.String()),
			Value: data,
			Headers: map[string]string{
				HeaderEventType: env.EventType,
				HeaderSource:    p.source,
			},
		})
	}
	if err := p.writer.Publish(ctx, p.topic, msgs...); err != nil {
		return fmt.Errorf("failed to publish %d events: %w", len(msgs), err)
	}
	p.logger.Debug("events published", slog.String("topic", p.topic), slog.Int("count", len(msgs)))
	return nil
}

// LogPublisher stands in for Kafka when no brokers are configured. It only
// logs the events.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher that logs events at debug level.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs each event.
func (p *LogPublisher) Publish(_ context.Context, evts ...events.DomainEvent) error {
	for _, evt := range evts {
		p.logger.Debug("event not published, no brokers configured",
			slog.String("event_type", evt.EventType()),
			slog.String("aggregate_id", evt.AggregateID().String()),
		)
	}
	return nil
}
