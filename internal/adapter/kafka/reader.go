package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/body-chart/internal/config"
	"github.com/couchcryptid/body-chart/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// VariantsHeader optionally restricts the variants rendered for one message,
// e.g. "worst" or "any,worst".
const VariantsHeader = "variants"

// batchWait bounds how long ExtractBatch waits to fill a batch once the first
// message has arrived.
const batchWait = 250 * time.Millisecond

// Reader consumes survey exports from a Kafka topic.
// It implements pipeline.BatchExtractor.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a Kafka consumer for the configured source topic.
// Offsets are committed explicitly once a survey's charts are loaded.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		GroupID:     cfg.KafkaGroupID,
		Topic:       cfg.KafkaSourceTopic,
		MinBytes:    1,
		MaxBytes:    int(max(cfg.MaxUploadBytes, 1<<20)),
		StartOffset: kafkago.FirstOffset,
	})
	return &Reader{reader: r, logger: logger}
}

// ExtractBatch blocks for the first message, then collects up to batchSize
// messages that arrive within batchWait.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawSurvey, error) {
	msg, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch message: %w", err)
	}
	batch := []domain.RawSurvey{r.toRawSurvey(msg)}

	fillCtx, cancel := context.WithTimeout(ctx, batchWait)
	defer cancel()
	for len(batch) < batchSize {
		msg, err := r.reader.FetchMessage(fillCtx)
		if err != nil {
			// Deadline or a transient error: the next call surfaces anything persistent.
			break
		}
		batch = append(batch, r.toRawSurvey(msg))
	}
	return batch, nil
}

func (r *Reader) toRawSurvey(msg kafkago.Message) domain.RawSurvey {
	raw, err := mapMessageToRawSurvey(msg)
	if err != nil {
		r.logger.Warn("ignoring variants header", "error", err,
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
	}
	raw.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return raw
}

// Close closes the underlying reader.
func (r *Reader) Close() error {
	return r.reader.Close()
}

// mapMessageToRawSurvey converts a Kafka message into a RawSurvey. The key
// names the survey; keyless messages are named after their position. A bad
// variants header is reported but the survey is still returned with the
// default variants.
func mapMessageToRawSurvey(msg kafkago.Message) (domain.RawSurvey, error) {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	name := string(msg.Key)
	if name == "" {
		name = fmt.Sprintf("%s-%d-%d", msg.Topic, msg.Partition, msg.Offset)
	}

	raw := domain.RawSurvey{
		Name:      name,
		Data:      msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}

	if list, ok := headers[VariantsHeader]; ok {
		variants, err := domain.ParseVariants(list)
		if err != nil {
			return raw, fmt.Errorf("parse %s header: %w", VariantsHeader, err)
		}
		raw.Variants = variants
	}
	return raw, nil
}
