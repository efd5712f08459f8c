package audit

import (
	"context"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"urlrisk/pkg/domain"
	"urlrisk/pkg/serrors"
)

// KafkaOptions configures the Kafka sink.
type KafkaOptions struct {
	// Brokers is the list of bootstrap broker addresses.
	Brokers []string
	// Topic receives one message per audit record.
	Topic string
	// BatchTimeout caps how long the writer waits to fill a batch.
	BatchTimeout time.Duration
	// WriteTimeout bounds a single produce request. Zero keeps the kafka-go default.
	WriteTimeout time.Duration
}

// MessageWriter is the subset of *kafkago.Writer used by the sink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaSink publishes audit records to a Kafka topic keyed by decision ID.
type KafkaSink struct {
	topic  string
	writer MessageWriter
}

// Ensure KafkaSink conforms to the Sink interface at compile time.
var _ Sink = (*KafkaSink)(nil)

// NewKafkaSink creates a sink with a kafka-go writer for the configured topic.
func NewKafkaSink(options KafkaOptions) (*KafkaSink, error) {
	if len(options.Brokers) == 0 {
		return nil, serrors.With(serrors.ErrInvalidConfig, "kafka brokers are not configured")
	}
	if options.Topic == "" {
		return nil, serrors.With(serrors.ErrInvalidConfig, "kafka topic is not configured")
	}

	batchTimeout := options.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}

	return NewKafkaSinkWithWriter(options.Topic, &kafkago.Writer{
		Addr:         kafkago.TCP(options.Brokers...),
		Topic:        options.Topic,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: batchTimeout,
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: options.WriteTimeout,
	}), nil
}

// NewKafkaSinkWithWriter creates a sink publishing through w. The writer must
// already be bound to topic.
func NewKafkaSinkWithWriter(topic string, w MessageWriter) *KafkaSink {
	return &KafkaSink{topic: topic, writer: w}
}

func (s *KafkaSink) Name() string { return "kafka:" + s.topic }

// Append publishes rec and waits for the brokers to acknowledge it. Broker
// failures are reported as serrors.ErrUnavailable.
func (s *KafkaSink) Append(ctx context.Context, rec domain.AuditRecord) error {
	line := Line(rec)
	msg := kafkago.Message{
		Key:   []byte(rec.ID.String()),
		Value: line[:len(line)-1],
		Headers: []kafkago.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "model-version", Value: []byte(rec.ModelVersion)},
		},
		Time: rec.Timestamp,
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return serrors.Wrap(serrors.ErrUnavailable, err, "could not publish audit record to %s", s.topic)
	}

	return nil
}

func (s *KafkaSink) Close() error {
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("could not close kafka writer: %w", err)
	}

	return nil
}
