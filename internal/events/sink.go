package events

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// KafkaSink writes outbox messages to a Kafka topic keyed by aggregate id,
// so all events of one order land on the same partition in order
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (s *KafkaSink) Publish(ctx context.Context, msg OutboxMessage) error {
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.AggregateID),
		Value: []byte(msg.Payload),
		Time:  msg.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(msg.ID)},
			{Key: "event_type", Value: []byte(msg.EventType)},
		},
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// LogSink logs events instead of shipping them; used when no brokers are set
type LogSink struct{}

func (LogSink) Publish(_ context.Context, msg OutboxMessage) error {
	log.Info().
		Str("component", "outbox_relay").
		Str("event_id", msg.ID).
		Str("event_type", msg.EventType).
		Str("aggregate_id", msg.AggregateID).
		RawJSON("payload", []byte(msg.Payload)).
		Msg("event published")
	return nil
}

func (LogSink) Close() error { return nil }
