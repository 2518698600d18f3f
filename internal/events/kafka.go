package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dtroode/smartbank-server/internal/logger"
	"github.com/dtroode/smartbank-server/internal/model"
)

// messageWriter is the part of *kafka.Writer used by publishers.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter returns a synchronous writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
}

var _ model.EventPublisher = (*KafkaPublisher)(nil)

// KafkaPublisher writes events keyed by address, so one account's events stay ordered
// within a partition.
type KafkaPublisher struct {
	writer messageWriter
	logger *logger.Logger
}

func NewKafkaPublisher(writer messageWriter, logger *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		logger: logger,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events []model.Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e.Message())
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %w", e.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.Address),
			Value: value,
			Time:  e.Timestamp,
			Headers: []kafka.Header{
				{Key: "event-kind", Value: []byte(e.Kind)},
				{Key: "event-id", Value: []byte(e.ID.String())},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write kafka messages: %w", err)
	}

	p.logger.Debug("Kafka publisher: events written", "count", len(msgs))
	return nil
}
