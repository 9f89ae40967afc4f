package kafka

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// ErrProducerClosed is returned by Publish after Close.
var ErrProducerClosed = errors.New("kafka: producer closed")

// Message is one record on a topic. Key selects the partition, so events of
// one aggregate (a prediction, a training run) stay in order.
type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Producer writes records for scoringd and scoring-train. Writers are
// created per topic on first use and share one transport.
type Producer struct {
	mu        sync.Mutex
	writers   map[string]*kafkago.Writer
	closed    bool
	brokers   []string
	transport *kafkago.Transport
}

// NewProducer builds a Producer. It does not dial; the first Publish does.
func NewProducer(cfg Config) (*Producer, error) {
	mechanism, err := cfg.mechanism()
	if err != nil {
		return nil, err
	}
	return &Producer{
		writers: make(map[string]*kafkago.Writer),
		brokers: cfg.Brokers,
		transport: &kafkago.Transport{
			ClientID: cfg.ClientID,
			TLS:      cfg.tlsConfig(),
			SASL:     mechanism,
		},
	}, nil
}

// Publish writes messages to topic and waits for every in-sync replica to
// acknowledge them.
func (p *Producer) Publish(ctx context.Context, topic string, messages ...Message) error {
	w, err := p.writer(topic)
	if err != nil {
		return err
	}
	records := make([]kafkago.Message, len(messages))
	for i, msg := range messages {
		records[i] = toRecord(msg)
	}
	if err := w.WriteMessages(ctx, records...); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}
	return nil
}

// Close flushes and closes every writer. Later calls to Publish fail with
// ErrProducerClosed.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing writer for topic %s: %w", topic, err))
		}
	}
	p.writers = make(map[string]*kafkago.Writer)
	p.closed = true
	return errors.Join(errs...)
}

func (p *Producer) writer(topic string) (*kafkago.Writer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrProducerClosed
	}
	if w, ok := p.writers[topic]; ok {
		return w, nil
	}
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		Transport:              p.transport,
	}
	p.writers[topic] = w
	return w, nil
}

// toRecord converts msg, emitting headers in key order.
func toRecord(msg Message) kafkago.Message {
	rec := kafkago.Message{Key: msg.Key, Value: msg.Value}
	for _, k := range slices.Sorted(maps.Keys(msg.Headers)) {
		rec.Headers = append(rec.Headers, kafkago.Header{Key: k, Value: []byte(msg.Headers[k])})
	}
	return rec
}
