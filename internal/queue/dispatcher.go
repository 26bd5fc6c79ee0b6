package queue

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/AmirMahdi-for/pipeline/internal/config"
)

// Message is the job envelope handed to the workers.
type Message struct {
	DocumentID uint `json:"document_id"`
}

// Dispatcher publishes document ids for the processing workers.
// Delivery is at-least-once; consumers must tolerate redelivery.
type Dispatcher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewDispatcher(cfg *config.KafkaConfig, log *zap.Logger) *Dispatcher {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},
	}
	return &Dispatcher{writer: writer, log: log}
}

// Enqueue publishes one document id. The key is the decimal id so all
// deliveries for a document land on the same partition.
func (d *Dispatcher) Enqueue(ctx context.Context, documentID uint) error {
	payload, err := json.Marshal(Message{DocumentID: documentID})
	if err != nil {
		return err
	}

	err = d.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(documentID), 10)),
		Value: payload,
	})
	if err != nil {
		d.log.Error("Failed to enqueue document",
			zap.Uint("document_id", documentID),
			zap.Error(err))
		return err
	}

	d.log.Info("Document enqueued", zap.Uint("document_id", documentID))
	return nil
}

func (d *Dispatcher) Close() error {
	return d.writer.Close()
}
