package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/farm-survey-etl/internal/config"
	"github.com/couchcryptid/farm-survey-etl/internal/domain"
)

// Header keys set on every published message.
const (
	HeaderRunID       = "run_id"
	HeaderProcessedAt = "processed_at"
)

// FarmMessage is the JSON value of a published record.
type FarmMessage struct {
	ID          string            `json:"id"`
	RunID       string            `json:"run_id"`
	ProcessedAt time.Time         `json:"processed_at"`
	Record      domain.FarmRecord `json:"record"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes validated farm records to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer    messageWriter
	batchSize int
	logger    *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchSize:              cfg.BatchSize,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, batchSize: cfg.BatchSize, logger: logger}
}

// Publish writes one message per record, keyed by domain.RecordID so a
// re-run of the same sheet lands on the same partition. Records are sent in
// chunks of the configured batch size. It returns the number of records
// acknowledged before any error.
func (w *Writer) Publish(ctx context.Context, runID string, processedAt time.Time, records []domain.FarmRecord) (int, error) {
	size := w.batchSize
	if size <= 0 {
		size = len(records)
	}

	sent := 0
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		msgs := make([]kafkago.Message, 0, end-start)
		for _, r := range records[start:end] {
			msg, err := serializeToMessage(runID, processedAt, r)
			if err != nil {
				return sent, err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return sent, fmt.Errorf("write messages: %w", err)
		}
		sent += len(msgs)
		w.logger.Debug("published chunk", "records", len(msgs), "total", sent)
	}
	return sent, nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a record into a Kafka message.
func serializeToMessage(runID string, processedAt time.Time, r domain.FarmRecord) (kafkago.Message, error) {
	id := domain.RecordID(r)
	data, err := json.Marshal(FarmMessage{
		ID:          id,
		RunID:       runID,
		ProcessedAt: processedAt,
		Record:      r,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize farm record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(id),
		Value: data,
		Headers: []kafkago.Header{
			{Key: HeaderRunID, Value: []byte(runID)},
			{Key: HeaderProcessedAt, Value: []byte(processedAt.Format(time.RFC3339))},
		},
	}, nil
}
