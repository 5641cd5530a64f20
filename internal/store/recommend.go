package store

import (
	"context"
	"fmt"

	"quant-core/internal/stock"
)

// ReplaceRecommendations atomically swaps the hit list for one
// (date, strategy) pair.
func (s *Store) ReplaceRecommendations(ctx context.Context, date string, strategyType int, recs []Recommendation) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM recommendations WHERE date = ? AND strategy_type = ?
	`, date, strategyType); err != nil {
		return fmt.Errorf("delete recommendations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recommendations (date, strategy_type, code, name, price, reason)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx, date, strategyType, r.Code, r.Name, r.Price, r.Reason); err != nil {
			return fmt.Errorf("insert recommendation: %w", err)
		}
	}
	return tx.Commit()
}

// ListRecommendations returns the hits for one (date, strategy) pair.
func (s *Store) ListRecommendations(ctx context.Context, date string, strategyType int) ([]Recommendation, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, date, strategy_type, code, name, price, COALESCE(reason, '')
		FROM recommendations
		WHERE date = ? AND strategy_type = ?
		ORDER BY code ASC
	`, date, strategyType)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	var recs []Recommendation
	for rows.Next() {
		var (
			r Recommendation
			d string
		)
		if err := rows.Scan(&r.ID, &d, &r.StrategyType, &r.Code, &r.Name, &r.Price, &r.Reason); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		if r.Date, err = stock.ParseDate(d); err != nil {
			return nil, fmt.Errorf("parse recommendation date %q: %w", d, err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
