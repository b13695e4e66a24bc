// Package outbox ships committed outbox rows to Kafka.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-retail-orders/internal/kafka"
	"github.com/ariefcatur/go-retail-orders/internal/logger"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// Relay delivers at least once: rows are marked published only after the
// broker acknowledged them, so a crash in between resends the batch.
type Relay struct {
	store     orders.OutboxStore
	pub       Publisher
	batchSize int
	interval  time.Duration
	log       *logger.Logger
}

func NewRelay(store orders.OutboxStore, pub Publisher, batchSize int, interval time.Duration, log *logger.Logger) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Relay{store: store, pub: pub, batchSize: batchSize, interval: interval, log: log}
}

// RunOnce publishes one batch and reports how many rows it delivered.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.store.PendingMessages(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load outbox: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, 0, len(pending))
	ids := make([]string, 0, len(pending))
	for _, m := range pending {
		msgs = append(msgs, kafka.Message{
			Topic:   m.Topic,
			Key:     m.Key,
			Value:   m.Payload,
			Headers: kafkax.Headers(m.Headers),
			Time:    m.CreatedAt,
		})
		ids = append(ids, m.ID)
	}
	if err := r.pub.Publish(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("publish outbox: %w", err)
	}
	if err := r.store.MarkPublished(ctx, ids); err != nil {
		return 0, fmt.Errorf("mark outbox published: %w", err)
	}
	return len(pending), nil
}

// Run drains the outbox on every tick until ctx is cancelled. A full batch
// triggers another pass immediately.
func (r *Relay) Run(ctx context.Context) error {
	r.log.Info("outbox relay started", "batch", r.batchSize, "interval", r.interval)
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		for {
			n, err := r.RunOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.log.Warn("outbox relay pass failed", "error", err)
				break
			}
			if n > 0 {
				r.log.Debug("outbox relayed", "count", n)
			}
			if n < r.batchSize {
				break
			}
		}
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped")
			return nil
		case <-t.C:
		}
	}
}
