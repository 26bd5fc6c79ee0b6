package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/AmirMahdi-for/pipeline/internal/config"
	"github.com/AmirMahdi-for/pipeline/internal/service"
)

// Consumer pulls document ids from the job topic and runs the
// processor for each. Joining a consumer group gives at-least-once
// delivery: an id whose run was cut short is redelivered and the
// processor is safe to re-invoke.
type Consumer struct {
	reader    *kafka.Reader
	processor service.Processor
	log       *zap.Logger
}

func NewConsumer(cfg *config.KafkaConfig, processor service.Processor, log *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
	return &Consumer{
		reader:    reader,
		processor: processor,
		log:       log,
	}
}

// Run consumes until ctx is cancelled or the reader is closed.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("Worker consuming jobs")

	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				c.log.Info("Worker stopping")
				return nil
			}
			c.log.Error("Failed to read message", zap.Error(err))
			continue
		}

		var msg Message
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			// Malformed payload: drop it, redelivery would never help.
			c.log.Error("Failed to unmarshal message",
				zap.ByteString("value", m.Value),
				zap.Error(err))
			continue
		}

		outcome := c.processor.Run(ctx, msg.DocumentID)
		c.log.Info("Run finished",
			zap.Uint("document_id", msg.DocumentID),
			zap.String("outcome", outcome.Kind.String()),
			zap.String("message", outcome.Message))
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
