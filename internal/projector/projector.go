// Package projector keeps the order read cache warm from order.placed events.
package projector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	kafkax "github.com/ariefcatur/go-retail-orders/internal/kafka"
	"github.com/ariefcatur/go-retail-orders/internal/logger"
	"github.com/ariefcatur/go-retail-orders/internal/observability"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/redisx"
)

type Projector struct {
	cache  redisx.Cache
	name   string
	log    *logger.Logger
	tracer trace.Tracer
}

// New returns a projector; name scopes its dedup keys.
func New(cache redisx.Cache, name string, log *logger.Logger) *Projector {
	return &Projector{cache: cache, name: name, log: log, tracer: otel.Tracer("projector")}
}

// HandleOrderPlaced is a kafka.Handler. Malformed or foreign messages are
// logged and acknowledged; cache failures are returned so the offset stays
// uncommitted.
func (p *Projector) HandleOrderPlaced(ctx context.Context, m kafka.Message) error {
	ctx = observability.ExtractHeaders(ctx, kafkax.HeaderMap(m.Headers))
	ctx, span := p.tracer.Start(ctx, "projector.order_placed", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	if t := kafkax.Header(m, "x-event-type"); t != "" && t != orders.EventOrderPlaced {
		p.log.Debug("skipping event", "type", t, "offset", m.Offset)
		return nil
	}

	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		p.log.Error("bad envelope", "offset", m.Offset, "error", err)
		return nil
	}
	if env.EventVersion != 1 {
		p.log.Warn("unsupported event version", "event_id", env.EventID, "version", env.EventVersion)
		return nil
	}
	payload, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		p.log.Error("bad payload", "event_id", env.EventID, "error", err)
		return nil
	}
	span.SetAttributes(attribute.String("order.id", payload.OrderID), attribute.String("event.id", env.EventID))

	dedup := fmt.Sprintf(redisx.KeyDedup, p.name, env.EventID)
	first, err := p.cache.SetNX(ctx, dedup, []byte("1"), redisx.TTLDedup)
	if err != nil {
		return err
	}
	if !first {
		p.log.Debug("duplicate event", "event_id", env.EventID)
		return nil
	}

	b, err := json.Marshal(orders.ViewFromPlaced(payload))
	if err != nil {
		_ = p.cache.Del(ctx, dedup)
		return err
	}
	if err := p.cache.Set(ctx, fmt.Sprintf(redisx.KeyOrder, payload.OrderID), b, redisx.TTLOrderCache); err != nil {
		// release the marker so the redelivery is not treated as a duplicate
		_ = p.cache.Del(ctx, dedup)
		return err
	}
	p.log.Info("order projected", "order_id", payload.OrderID, "event_id", env.EventID)
	return nil
}
