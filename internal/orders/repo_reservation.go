package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// LockProducts takes the row locks for every id in one statement, in id order,
// so two multi-line orders touching the same products cannot deadlock.
// Unknown ids are ignored here; LockProduct reports them per line.
func (s *pgScope) LockProducts(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := s.tx.Query(ctx, `SELECT id FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock products: %w", err)
	}
	return nil
}

// LockProduct reads the current row under FOR UPDATE. Inside one scope it
// sees the scope's own earlier decrements.
func (s *pgScope) LockProduct(ctx context.Context, id string) (Product, error) {
	var (
		p     Product
		price string
	)
	err := s.tx.QueryRow(ctx, `SELECT id, name, price::text, stock FROM products WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.Name, &price, &p.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("lock product %s: %w", id, err)
	}
	if p.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return Product{}, fmt.Errorf("product %s price: %w", id, err)
	}
	return p, nil
}

// DecrementStock never lets stock go below zero, even if a caller skipped the
// LockProduct check.
func (s *pgScope) DecrementStock(ctx context.Context, id string, qty int) error {
	ct, err := s.tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id=$1 AND stock >= $2`, id, qty)
	if err != nil {
		return fmt.Errorf("decrement stock %s: %w", id, describe(err))
	}
	if ct.RowsAffected() != 1 {
		return ErrInsufficientStock
	}
	return nil
}
