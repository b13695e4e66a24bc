// Package fulfillment places orders: stock reservation, pricing, the order
// record, its income entry and the outgoing events all commit or roll back as
// one storage scope.
package fulfillment

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ariefcatur/go-retail-orders/internal/inventory"
	"github.com/ariefcatur/go-retail-orders/internal/logger"
	"github.com/ariefcatur/go-retail-orders/internal/observability"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/pricing"
)

type Coordinator struct {
	store   orders.Store
	ledger  *inventory.Ledger
	pricing pricing.Calculator
	log     *logger.Logger

	tracer    trace.Tracer
	committed metric.Int64Counter
	aborted   metric.Int64Counter

	producer string
	now      func() time.Time
	newID    func() string
	onMove   func(from, to orders.State)
}

type Option func(*Coordinator)

func WithClock(now func() time.Time) Option { return func(c *Coordinator) { c.now = now } }

func WithIDGenerator(newID func() string) Option { return func(c *Coordinator) { c.newID = newID } }

// WithProducerName sets the producer recorded in outgoing event envelopes.
func WithProducerName(name string) Option { return func(c *Coordinator) { c.producer = name } }

// WithTransitionHook is called on every state change of every PlaceOrder call.
func WithTransitionHook(fn func(from, to orders.State)) Option {
	return func(c *Coordinator) { c.onMove = fn }
}

func NewCoordinator(store orders.Store, ledger *inventory.Ledger, calc pricing.Calculator, log *logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		ledger:   ledger,
		pricing:  calc,
		log:      log,
		tracer:   otel.Tracer("fulfillment"),
		producer: "order-api",
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(c)
	}

	meter := otel.Meter("fulfillment")
	var err error
	if c.committed, err = meter.Int64Counter("orders.committed"); err != nil {
		log.Warn("orders.committed counter unavailable", "error", err)
	}
	if c.aborted, err = meter.Int64Counter("orders.aborted"); err != nil {
		log.Warn("orders.aborted counter unavailable", "error", err)
	}
	return c
}

// PlaceOrder reserves stock for every requested line, prices the accepted
// lines and persists the order together with its income entry. It returns
// orders.ErrUserNotFound, a *orders.ValidationError listing every rejected
// line, or a *orders.AbortedError for storage faults. On any error nothing
// the call wrote survives.
func (c *Coordinator) PlaceOrder(ctx context.Context, req orders.PlaceOrderRequest) (*orders.Order, error) {
	ctx, span := c.tracer.Start(ctx, "fulfillment.place_order")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.user_id", req.UserRef),
		attribute.String("order.reference_number", req.ReferenceNumber),
		attribute.Int("order.lines", len(req.Items)),
	)

	r := &run{
		state:  orders.StateStarted,
		log:    c.log.With("user_id", req.UserRef, "reference_number", req.ReferenceNumber),
		onMove: c.onMove,
	}

	order, err := c.place(ctx, r, req)
	if err != nil {
		c.fail(ctx, span, r, err)
		return nil, err
	}

	c.add(ctx, c.committed)
	span.SetAttributes(attribute.String("order.id", order.ID))
	span.SetStatus(codes.Ok, "order committed")
	r.log.Info("order committed",
		"order_id", order.ID,
		"lines", len(order.Lines),
		"total_price", order.TotalPrice.StringFixed(2),
	)
	return order, nil
}

func (c *Coordinator) place(ctx context.Context, r *run, req orders.PlaceOrderRequest) (*orders.Order, error) {
	scope, err := c.store.Begin(ctx)
	if err != nil {
		return nil, c.abort(r, "begin", err)
	}
	defer func() {
		if r.state == orders.StateCommitted {
			return
		}
		if err := scope.Rollback(context.WithoutCancel(ctx)); err != nil {
			r.log.Error("rollback failed", "error", err)
		}
	}()

	r.to(orders.StateValidating)

	user, err := scope.FindUser(ctx, req.UserRef)
	if errors.Is(err, orders.ErrUserNotFound) {
		r.to(orders.StateAborted)
		return nil, orders.ErrUserNotFound
	}
	if err != nil {
		return nil, c.abort(r, "find_user", err)
	}

	if len(req.Items) == 0 {
		r.to(orders.StateAborted)
		return nil, &orders.ValidationError{Lines: []*orders.LineError{{Err: orders.ErrEmptyOrder}}}
	}

	if err := c.ledger.LockAll(ctx, scope, req.Items); err != nil {
		return nil, c.abort(r, "lock", err)
	}

	lines := make([]orders.OrderLine, 0, len(req.Items))
	var rejected []*orders.LineError
	for i, it := range req.Items {
		res, err := c.ledger.Reserve(ctx, scope, it.ProductRef, it.Quantity)
		var le *orders.LineError
		if errors.As(err, &le) {
			le.Index = i
			rejected = append(rejected, le)
			continue
		}
		if err != nil {
			return nil, c.abort(r, "reserve", err)
		}
		lines = append(lines, orders.OrderLine{
			ProductRef: res.ProductRef,
			Name:       res.Name,
			Quantity:   res.Quantity,
			UnitPrice:  res.UnitPrice,
		})
	}
	if len(rejected) > 0 {
		r.to(orders.StateAborted)
		return nil, &orders.ValidationError{Lines: rejected}
	}

	items := make([]pricing.Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, pricing.Item{UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}
	totals := c.pricing.Compute(items)

	r.to(orders.StateCommitting)

	order := &orders.Order{
		ID:              c.newID(),
		UserRef:         user.ID,
		Lines:           lines,
		ItemsPrice:      totals.ItemsPrice,
		TaxPrice:        totals.TaxPrice,
		TotalPrice:      totals.TotalPrice,
		PaymentMethod:   req.PaymentMethod,
		ReferenceNumber: req.ReferenceNumber,
		// Postgres keeps microseconds; truncate so the returned order equals the stored one.
		CreatedAt: c.now().UTC().Truncate(time.Microsecond),
	}
	income := orders.NewIncomeEntry(c.newID(), order)

	msgs, err := c.outboxMessages(ctx, order, income)
	if err != nil {
		return nil, c.abort(r, "encode_events", err)
	}
	if err := scope.InsertOrder(ctx, order); err != nil {
		return nil, c.abort(r, "insert_order", err)
	}
	if err := scope.InsertIncome(ctx, income); err != nil {
		return nil, c.abort(r, "insert_income", err)
	}
	if err := scope.EnqueueMessages(ctx, msgs...); err != nil {
		return nil, c.abort(r, "enqueue_events", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, c.abort(r, "commit", err)
	}
	if err := scope.Commit(ctx); err != nil {
		return nil, c.abort(r, "commit", err)
	}

	r.to(orders.StateCommitted)
	return order, nil
}

func (c *Coordinator) outboxMessages(ctx context.Context, o *orders.Order, e *orders.IncomeEntry) ([]orders.OutboxMessage, error) {
	traceID := observability.TraceID(ctx)
	traceHeaders := observability.InjectHeaders(ctx)

	placed, err := orders.NewOutboxMessage(c.newID(), orders.TopicOrderPlaced, orders.EventOrderPlaced,
		c.producer, o.ID, traceID, o.CreatedAt, orders.NewOrderPlacedPayload(o))
	if err != nil {
		return nil, err
	}
	recorded, err := orders.NewOutboxMessage(c.newID(), orders.TopicIncomeRecorded, orders.EventIncomeRecorded,
		c.producer, o.ID, traceID, e.Date, orders.NewIncomeRecordedPayload(e))
	if err != nil {
		return nil, err
	}
	maps.Copy(placed.Headers, traceHeaders)
	maps.Copy(recorded.Headers, traceHeaders)
	return []orders.OutboxMessage{placed, recorded}, nil
}

func (c *Coordinator) abort(r *run, stage string, err error) error {
	r.to(orders.StateAborted)
	return &orders.AbortedError{Stage: stage, Err: err}
}

func (c *Coordinator) fail(ctx context.Context, span trace.Span, r *run, err error) {
	reason := "aborted"
	switch {
	case errors.Is(err, orders.ErrUserNotFound):
		reason = "user_not_found"
	case errors.Is(err, orders.ErrValidationFailed):
		reason = "validation_failed"
	}
	c.add(ctx, c.aborted, attribute.String("reason", reason))
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)

	if reason == "aborted" {
		r.log.Error("order aborted", "reason", reason, "error", err)
		return
	}
	r.log.Warn("order rejected", "reason", reason, "error", err)
}

func (c *Coordinator) add(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}
