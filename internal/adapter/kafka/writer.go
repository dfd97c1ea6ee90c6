package kafka

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/body-chart/internal/config"
	"github.com/couchcryptid/body-chart/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces rendered charts to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchBytes:   max(cfg.MaxUploadBytes, 1<<20),
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch publishes every chart of the batch in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, charts []domain.RenderedChart) error {
	if len(charts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(charts))
	for i := range charts {
		msgs[i] = serializeToMessage(charts[i])
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	w.logger.Debug("charts published", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage wraps a rendered chart in a Kafka message. The survey name
// is the key so every variant of a survey lands on the same partition.
func serializeToMessage(c domain.RenderedChart) kafkago.Message {
	return kafkago.Message{
		Key:   []byte(c.Chart.Survey),
		Value: c.Data,
		Headers: []kafkago.Header{
			{Key: "chart_id", Value: []byte(c.Chart.ID)},
			{Key: "variant", Value: []byte(c.Chart.Variant.Name)},
			{Key: "format", Value: []byte(c.Format)},
			{Key: "max", Value: []byte(strconv.Itoa(c.Chart.Max))},
			{Key: "rendered_at", Value: []byte(c.Chart.RenderedAt.Format(time.RFC3339))},
		},
	}
}
