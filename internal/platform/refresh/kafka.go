package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/mediimate/gateway/internal/platform/websocket"
)

// ChangeMessage is one record-change notification emitted by the clinical
// backend.
type ChangeMessage struct {
	Kind       string `json:"kind"` // prescriptions | reports
	UserID     string `json:"userId"`
	ResourceID string `json:"resourceId,omitempty"`
	Action     string `json:"action,omitempty"`
}

// FeedConsumer reads backend change notifications from Kafka and publishes
// them to the hub.
type FeedConsumer struct {
	reader    *kafka.Reader
	publisher websocket.EventPublisher
	logger    zerolog.Logger
}

func NewFeedConsumer(brokers []string, topic, groupID string, publisher websocket.EventPublisher, logger zerolog.Logger) *FeedConsumer {
	return &FeedConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 1e6,
		}),
		publisher: publisher,
		logger:    logger.With().Str("component", "change_feed").Str("topic", topic).Logger(),
	}
}

// Run consumes until ctx is cancelled.
func (f *FeedConsumer) Run(ctx context.Context) error {
	f.logger.Info().Msg("change feed consumer started")
	for {
		msg, err := f.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read change feed: %w", err)
		}
		if err := handleChange(ctx, f.publisher, msg.Value); err != nil {
			f.logger.Warn().Err(err).
				Int64("offset", msg.Offset).
				Int("partition", msg.Partition).
				Msg("skipping change message")
		}
	}
}

func (f *FeedConsumer) Close() error {
	return f.reader.Close()
}

func handleChange(ctx context.Context, publisher websocket.EventPublisher, value []byte) error {
	var cm ChangeMessage
	if err := json.Unmarshal(value, &cm); err != nil {
		return fmt.Errorf("decode change message: %w", err)
	}
	topic := websocket.Topic(cm.Kind, cm.UserID)
	if _, _, ok := websocket.ParseTopic(topic); !ok {
		return fmt.Errorf("unknown change kind %q or empty user", cm.Kind)
	}
	data, _ := json.Marshal(map[string]string{"action": cm.Action})
	return publisher.Publish(ctx, websocket.Event{
		Type:       cm.Kind + ".changed",
		Topic:      topic,
		ResourceID: cm.ResourceID,
		Data:       data,
	})
}
