// Package memstore is an in-process orders.Store for local runs and tests.
//
// Scopes are fully serialized: Begin waits until no other scope is open, and a
// scope stages its writes privately until Commit publishes them at once. That is
// serializable isolation by construction, so the coordinator's guarantees can
// be exercised without a database.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

// Operations that can be made to fail with FailOn.
const (
	OpFindUser     = "find_user"
	OpInsertOrder  = "insert_order"
	OpInsertIncome = "insert_income"
	OpEnqueue      = "enqueue"
	OpCommit       = "commit"
)

var ErrScopeClosed = errors.New("memstore: scope already closed")

type outboxRow struct {
	msg       orders.OutboxMessage
	published bool
}

type Store struct {
	sem chan struct{}

	mu       sync.RWMutex
	users    map[string]orders.User
	products map[string]orders.Product
	orders   map[string]orders.Order
	income   []orders.IncomeEntry
	outbox   []outboxRow
	faults   map[string]error
}

func New() *Store {
	return &Store{
		sem:      make(chan struct{}, 1),
		users:    map[string]orders.User{},
		products: map[string]orders.Product{},
		orders:   map[string]orders.Order{},
		faults:   map[string]error{},
	}
}

func (s *Store) PutUser(u orders.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) PutProduct(p orders.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) Product(id string) (orders.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

// Orders returns committed orders in no particular order.
func (s *Store) Orders() []orders.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]orders.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, copyOrder(o))
	}
	return out
}

func (s *Store) IncomeEntries() []orders.IncomeEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.income)
}

// FailOn makes every later call of op return err. A nil err clears the fault.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) fault(op string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.faults[op]
}

func (s *Store) Begin(ctx context.Context) (orders.Scope, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("begin: %w", ctx.Err())
	}
	return &scope{s: s, staged: map[string]orders.Product{}}, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	c := copyOrder(o)
	return &c, nil
}

func (s *Store) PendingMessages(_ context.Context, limit int) ([]orders.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []orders.OutboxMessage
	for _, r := range s.outbox {
		if len(out) == limit {
			break
		}
		if !r.published {
			out = append(out, r.msg)
		}
	}
	return out, nil
}

func (s *Store) MarkPublished(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if slices.Contains(ids, s.outbox[i].msg.ID) {
			s.outbox[i].published = true
		}
	}
	return nil
}

type scope struct {
	s      *Store
	staged map[string]orders.Product
	orders []orders.Order
	income []orders.IncomeEntry
	outbox []orders.OutboxMessage
	done   bool
}

func (c *scope) check(ctx context.Context, op string) error {
	if c.done {
		return ErrScopeClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if op != "" {
		return c.s.fault(op)
	}
	return nil
}

func (c *scope) FindUser(ctx context.Context, id string) (orders.User, error) {
	if err := c.check(ctx, OpFindUser); err != nil {
		return orders.User{}, err
	}
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	u, ok := c.s.users[id]
	if !ok {
		return orders.User{}, orders.ErrUserNotFound
	}
	return u, nil
}

func (c *scope) LockProducts(ctx context.Context, _ []string) error {
	return c.check(ctx, "")
}

func (c *scope) LockProduct(ctx context.Context, id string) (orders.Product, error) {
	if err := c.check(ctx, ""); err != nil {
		return orders.Product{}, err
	}
	if p, ok := c.staged[id]; ok {
		return p, nil
	}
	p, ok := c.s.Product(id)
	if !ok {
		return orders.Product{}, orders.ErrProductNotFound
	}
	return p, nil
}

func (c *scope) DecrementStock(ctx context.Context, id string, qty int) error {
	p, err := c.LockProduct(ctx, id)
	if err != nil {
		return err
	}
	if p.Stock < qty {
		return orders.ErrInsufficientStock
	}
	p.Stock -= qty
	c.staged[id] = p
	return nil
}

func (c *scope) InsertOrder(ctx context.Context, o *orders.Order) error {
	if err := c.check(ctx, OpInsertOrder); err != nil {
		return err
	}
	c.s.mu.RLock()
	_, exists := c.s.orders[o.ID]
	c.s.mu.RUnlock()
	if exists {
		return fmt.Errorf("insert order: duplicate id %s", o.ID)
	}
	c.orders = append(c.orders, copyOrder(*o))
	return nil
}

func (c *scope) InsertIncome(ctx context.Context, e *orders.IncomeEntry) error {
	if err := c.check(ctx, OpInsertIncome); err != nil {
		return err
	}
	cp := *e
	cp.Lines = slices.Clone(e.Lines)
	c.income = append(c.income, cp)
	return nil
}

func (c *scope) EnqueueMessages(ctx context.Context, msgs ...orders.OutboxMessage) error {
	if err := c.check(ctx, OpEnqueue); err != nil {
		return err
	}
	c.outbox = append(c.outbox, msgs...)
	return nil
}

func (c *scope) Commit(ctx context.Context) error {
	if c.done {
		return ErrScopeClosed
	}
	defer c.release()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if err := c.s.fault(OpCommit); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	for id, p := range c.staged {
		c.s.products[id] = p
	}
	for _, o := range c.orders {
		c.s.orders[o.ID] = o
	}
	c.s.income = append(c.s.income, c.income...)
	for _, m := range c.outbox {
		c.s.outbox = append(c.s.outbox, outboxRow{msg: m})
	}
	return nil
}

func (c *scope) Rollback(context.Context) error {
	if !c.done {
		c.release()
	}
	return nil
}

func (c *scope) release() {
	c.done = true
	<-c.s.sem
}

func copyOrder(o orders.Order) orders.Order {
	o.Lines = slices.Clone(o.Lines)
	return o
}
