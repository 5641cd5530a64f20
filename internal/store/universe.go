package store

import (
	"context"
	"fmt"

	"quant-core/internal/stock"
)

// UpsertStock registers one stock in the universe, updating its display
// name on conflict.
func (s *Store) UpsertStock(ctx context.Context, ref stock.Ref) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO stocks (code, name) VALUES (?, ?)
		ON CONFLICT(code) DO UPDATE SET name = excluded.name
	`, ref.Code, ref.Name)
	return err
}

// ListStocks returns the full universe ordered by code.
func (s *Store) ListStocks(ctx context.Context) ([]stock.Ref, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT code, name FROM stocks ORDER BY code ASC`)
	if err != nil {
		return nil, fmt.Errorf("query stocks: %w", err)
	}
	defer rows.Close()

	var refs []stock.Ref
	for rows.Next() {
		var r stock.Ref
		if err := rows.Scan(&r.Code, &r.Name); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}
