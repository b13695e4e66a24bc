package orders

import "context"

// Store opens atomic scopes. Every write made through a Scope becomes visible to
// other scopes only after Commit, and disappears entirely on Rollback.
type Store interface {
	Begin(ctx context.Context) (Scope, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
}

// StockScope is the part of a scope the inventory ledger works against.
// LockProduct re-reads the authoritative row and holds it until the scope ends.
type StockScope interface {
	LockProducts(ctx context.Context, ids []string) error
	LockProduct(ctx context.Context, id string) (Product, error)
	DecrementStock(ctx context.Context, id string, qty int) error
}

type Scope interface {
	StockScope
	FindUser(ctx context.Context, id string) (User, error)
	InsertOrder(ctx context.Context, o *Order) error
	InsertIncome(ctx context.Context, e *IncomeEntry) error
	EnqueueMessages(ctx context.Context, msgs ...OutboxMessage) error
	Commit(ctx context.Context) error
	// Rollback is a no-op after Commit.
	Rollback(ctx context.Context) error
}

// OutboxStore is read by the relay that ships committed messages to the broker.
type OutboxStore interface {
	PendingMessages(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkPublished(ctx context.Context, ids []string) error
}
