package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-retail-orders/internal/logger"
)

// MessageWriter is the slice of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes synchronously: Publish returns only once every message is
// acknowledged by all in-sync replicas, so callers can mark them delivered.
type Producer struct {
	w   MessageWriter
	log *logger.Logger
}

// NewProducer builds a writer without a fixed topic; each message names its own.
func NewProducer(brokers []string, log *logger.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
		log: log,
	}
}

// NewProducerWithWriter is used by tests and by callers that tune the writer themselves.
func NewProducerWithWriter(w MessageWriter, log *logger.Logger) *Producer {
	return &Producer{w: w, log: log}
}

func (p *Producer) Publish(ctx context.Context, msgs ...kafka.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write %d messages: %w", len(msgs), err)
	}
	p.log.Debug("kafka messages written", "count", len(msgs))
	return nil
}

func (p *Producer) Close() error { return p.w.Close() }
