package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/Shivanand-hulikatti/offering-enrollment/internal/model"
)

// Writer is the subset of kafka.Writer the sink needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink streams events to the analytics topic. Messages are keyed by
// offering id so one offering's events stay ordered within a partition.
type KafkaSink struct {
	writer Writer
}

// NewKafkaSink creates a sink writing to topic on brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaSink{writer: w}
}

// NewKafkaSinkWithWriter allows injecting a test writer.
func NewKafkaSinkWithWriter(w Writer) *KafkaSink {
	return &KafkaSink{writer: w}
}

// Deliver writes ev as JSON.
func (s *KafkaSink) Deliver(ctx context.Context, ev model.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.OfferingID),
		Value: b,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
