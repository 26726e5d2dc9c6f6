package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/aq-export-service/internal/config"
	"github.com/couchcryptid/aq-export-service/internal/domain"
)

// ExportEvent is the payload announcing that a day file is available.
type ExportEvent struct {
	Day        string    `json:"day"`
	Key        string    `json:"key"`
	Bucket     string    `json:"bucket"`
	Records    int64     `json:"records"`
	Bytes      int64     `json:"bytes"`
	ExportedAt time.Time `json:"exported_at"`
}

// Notifier publishes an ExportEvent for every uploaded day.
// It implements pipeline.Notifier.
type Notifier struct {
	writer messageWriter
	bucket string
	logger *slog.Logger
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewNotifier creates a Kafka producer for the configured export topic.
// Messages are keyed by day so re-exports of a day land on one partition.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Notifier{writer: w, bucket: cfg.S3Bucket, logger: logger}
}

// Notify publishes the event for one successfully uploaded day.
func (n *Notifier) Notify(ctx context.Context, result domain.TaskResult) error {
	msg, err := serializeToMessage(n.bucket, result, domain.Now())
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish export event for %s: %w", result.Day, err)
	}
	n.logger.Debug("export event published", "day", result.Day, "key", result.Key)
	return nil
}

// Close flushes pending messages and closes the producer.
func (n *Notifier) Close() error {
	return n.writer.Close()
}

func serializeToMessage(bucket string, result domain.TaskResult, now time.Time) (kafkago.Message, error) {
	event := ExportEvent{
		Day:        result.Day,
		Key:        result.Key,
		Bucket:     bucket,
		Records:    result.Records,
		Bytes:      result.Bytes,
		ExportedAt: now.UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize export event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(result.Day),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "day", Value: []byte(result.Day)},
			{Key: "exported_at", Value: []byte(event.ExportedAt.Format(time.RFC3339))},
		},
	}, nil
}
