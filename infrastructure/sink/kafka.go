package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/spooky-finn/depthbridge/monitor"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes signals keyed by symbol so each symbol stays on one partition.
type KafkaSink struct {
	writer messageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}
}

func NewKafkaSink(writer messageWriter) *KafkaSink {
	return &KafkaSink{writer: writer}
}

func (s *KafkaSink) Publish(ctx context.Context, signal *monitor.ArbitrageSignal) error {
	msg, err := kafkaMessage(signal)
	if err != nil {
		return err
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write for %s: %w", signal.Symbol, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

func kafkaMessage(signal *monitor.ArbitrageSignal) (kafka.Message, error) {
	value, err := encodeSignal(signal)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(signal.Symbol.String()),
		Value: value,
		Time:  signal.DetectedAt,
		Headers: []kafka.Header{
			{Key: "signal-id", Value: []byte(signal.ID.String())},
		},
	}, nil
}
