package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire form of a DomainEvent on the message bus.
type Envelope struct {
	OccurredAt    time.Time       `json:"occurred_at"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	Source        string          `json:"source,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	ID            uuid.UUID       `json:"id"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
}

// NewEnvelope wraps event for publishing. source names the emitting process
// so consumers can skip their own events.
func NewEnvelope(event DomainEvent, source string) Envelope {
	payload := event.Payload()
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	return Envelope{
		ID:            event.EventID(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		EventType:     event.EventType(),
		Source:        source,
		Payload:       payload,
		OccurredAt:    event.OccurredAt(),
	}
}

// Marshal returns the JSON encoding of the envelope.
func (e Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", e.EventType, err)
	}
	return data, nil
}

// DecodeEnvelope parses an envelope produced by Marshal.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode event envelope: %w", err)
	}
	if e.EventType == "" {
		return Envelope{}, fmt.Errorf("decode event envelope: missing event_type")
	}
	return e, nil
}

// DecodePayload unmarshals the envelope payload into v.
func (e Envelope) DecodePayload(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}
