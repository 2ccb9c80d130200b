// Package kafka publishes composed LayerSet snapshots to a Kafka topic so
// other renderers can follow the session.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/civic-hotspot-service/internal/layers"
)

// LayerWriter produces one message per rebuilt LayerSet.
// It implements layers.SnapshotPublisher.
type LayerWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewLayerWriter creates a Kafka producer for the layer snapshot topic.
func NewLayerWriter(brokers []string, topic string, logger *slog.Logger) *LayerWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
	return &LayerWriter{writer: w, logger: logger}
}

// PublishLayerSet serializes and writes a single snapshot.
func (w *LayerWriter) PublishLayerSet(ctx context.Context, set *layers.LayerSet) error {
	if set == nil {
		return nil
	}
	msg, err := serializeToMessage(set)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish layer set %d: %w", set.Token, err)
	}
	w.logger.Debug("layer set published", "token", set.Token, "layer_count", len(set.Layers))
	return nil
}

func (w *LayerWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a LayerSet into a Kafka message.
func serializeToMessage(set *layers.LayerSet) (kafkago.Message, error) {
	data, err := json.Marshal(set)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize layer set: %w", err)
	}
	return kafkago.Message{
		Key:   []byte("layers-" + strconv.FormatUint(set.Token, 10)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "data_token", Value: []byte(strconv.FormatUint(set.DataToken, 10))},
			{Key: "layer_ids", Value: []byte(strings.Join(set.IDs(), ","))},
			{Key: "built_at", Value: []byte(set.BuiltAt.Format(time.RFC3339))},
		},
	}, nil
}
