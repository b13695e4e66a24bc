package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo is the Postgres Store. Numeric columns cross the wire as text so that
// amounts stay decimal end to end.
type Repo struct{ DB *pgxpool.Pool }

// Begin opens a READ COMMITTED transaction. Stock rows are serialized with
// SELECT ... FOR UPDATE, which is what makes reserve-then-decrement safe.
func (r *Repo) Begin(ctx context.Context) (Scope, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &pgScope{tx: tx}, nil
}

func (r *Repo) GetOrder(ctx context.Context, id string) (*Order, error) {
	var (
		o                 Order
		items, tax, total string
	)
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, items_price::text, tax_price::text, total_price::text,
		       payment_method, reference_number, created_at
		FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.UserRef, &items, &tax, &total, &o.PaymentMethod, &o.ReferenceNumber, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	if o.ItemsPrice, err = decimal.NewFromString(items); err != nil {
		return nil, err
	}
	if o.TaxPrice, err = decimal.NewFromString(tax); err != nil {
		return nil, err
	}
	if o.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT product_id, name, qty, unit_price::text
		FROM order_items WHERE order_id=$1 ORDER BY line_no`, id)
	if err != nil {
		return nil, fmt.Errorf("get order items %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			l     OrderLine
			price string
		)
		if err := rows.Scan(&l.ProductRef, &l.Name, &l.Quantity, &price); err != nil {
			return nil, err
		}
		if l.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) PendingMessages(ctx context.Context, limit int) ([]OutboxMessage, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, topic, msg_key, payload, headers, created_at
		FROM outbox WHERE published_at IS NULL
		ORDER BY created_at, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending outbox: %w", err)
	}
	defer rows.Close()

	var out []OutboxMessage
	for rows.Next() {
		var m OutboxMessage
		if err := rows.Scan(&m.ID, &m.Topic, &m.Key, &m.Payload, &m.Headers, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repo) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.DB.Exec(ctx, `UPDATE outbox SET published_at = now() WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}

type pgScope struct {
	tx   pgx.Tx
	done bool
}

func (s *pgScope) FindUser(ctx context.Context, id string) (User, error) {
	var u User
	err := s.tx.QueryRow(ctx, `SELECT id, name FROM users WHERE id=$1`, id).Scan(&u.ID, &u.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("find user %s: %w", id, err)
	}
	return u, nil
}

func (s *pgScope) InsertOrder(ctx context.Context, o *Order) error {
	_, err := s.tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, items_price, tax_price, total_price,
		                   payment_method, reference_number, created_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8)`,
		o.ID, o.UserRef, o.ItemsPrice.String(), o.TaxPrice.String(), o.TotalPrice.String(),
		o.PaymentMethod, o.ReferenceNumber, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", describe(err))
	}

	for i, l := range o.Lines {
		_, err = s.tx.Exec(ctx, `
			INSERT INTO order_items(order_id, line_no, product_id, name, qty, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6::numeric)`,
			o.ID, i, l.ProductRef, l.Name, l.Quantity, l.UnitPrice.String())
		if err != nil {
			return fmt.Errorf("insert order item %d: %w", i, describe(err))
		}
	}
	return nil
}

func (s *pgScope) InsertIncome(ctx context.Context, e *IncomeEntry) error {
	_, err := s.tx.Exec(ctx, `
		INSERT INTO income(id, order_id, items_price, tax_price, total_price, date)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6)`,
		e.ID, e.OrderID, e.ItemsPrice.String(), e.TaxPrice.String(), e.TotalPrice.String(), e.Date)
	if err != nil {
		return fmt.Errorf("insert income: %w", describe(err))
	}
	for i, l := range e.Lines {
		_, err = s.tx.Exec(ctx, `
			INSERT INTO income_items(income_id, line_no, product_id, price)
			VALUES ($1, $2, $3, $4::numeric)`,
			e.ID, i, l.ProductRef, l.Price.String())
		if err != nil {
			return fmt.Errorf("insert income item %d: %w", i, describe(err))
		}
	}
	return nil
}

func (s *pgScope) EnqueueMessages(ctx context.Context, msgs ...OutboxMessage) error {
	for _, m := range msgs {
		_, err := s.tx.Exec(ctx, `
			INSERT INTO outbox(id, topic, msg_key, payload, headers, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			m.ID, m.Topic, m.Key, m.Payload, m.Headers, m.CreatedAt)
		if err != nil {
			return fmt.Errorf("enqueue %s: %w", m.Topic, describe(err))
		}
	}
	return nil
}

// Commit ends the scope either way; pgx rolls back a transaction whose commit fails.
func (s *pgScope) Commit(ctx context.Context) error {
	s.done = true
	if err := s.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", describe(err))
	}
	return nil
}

func (s *pgScope) Rollback(ctx context.Context) error {
	if s.done {
		return nil
	}
	s.done = true
	if err := s.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// describe adds SQLSTATE and constraint name to Postgres errors.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.ConstraintName != "" {
			return fmt.Errorf("%w (sqlstate %s, constraint %s)", err, pgErr.Code, pgErr.ConstraintName)
		}
		return fmt.Errorf("%w (sqlstate %s)", err, pgErr.Code)
	}
	return err
}
