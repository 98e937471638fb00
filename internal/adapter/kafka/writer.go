// Package kafka fans applied incident snapshots out to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/resq-grid/internal/config"
	"github.com/couchcryptid/resq-grid/internal/domain"
	"github.com/couchcryptid/resq-grid/internal/livesync"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// SnapshotWriter publishes every incident of a snapshot to the snapshot topic.
// It implements livesync.SnapshotSink.
type SnapshotWriter struct {
	writer messageWriter
	logger *slog.Logger
}

// NewSnapshotWriter creates a Kafka producer for the configured snapshot topic.
func NewSnapshotWriter(cfg *config.Config, logger *slog.Logger) *SnapshotWriter {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSnapshotTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &SnapshotWriter{writer: w, logger: logger}
}

// PublishSnapshot writes one message per incident, keyed by incident id so
// every version of an incident lands on the same partition. All messages of
// a snapshot go out in a single WriteMessages call.
func (w *SnapshotWriter) PublishSnapshot(ctx context.Context, snap livesync.Snapshot) error {
	if len(snap.Incidents) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(snap.Incidents))
	for i := range snap.Incidents {
		msg, err := serializeToMessage(snap.Incidents[i], snap.Seq, snap.UpdatedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish snapshot %d: %w", snap.Seq, err)
	}
	w.logger.Debug("snapshot published", "seq", snap.Seq, "incidents", len(msgs))
	return nil
}

func (w *SnapshotWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an incident into a Kafka message.
func serializeToMessage(inc domain.Incident, seq uint64, at time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(inc)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize incident %s: %w", inc.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(inc.ID),
		Value: data,
		Time:  at,
		Headers: []kafkago.Header{
			{Key: "snapshot_seq", Value: []byte(strconv.FormatUint(seq, 10))},
			{Key: "category", Value: []byte(inc.Category().String())},
			{Key: "status", Value: []byte(inc.Status)},
		},
	}, nil
}
