package store

import (
	"context"
	"database/sql"
	"fmt"

	"quant-core/internal/stock"
)

// ListBars returns all bars for a stock ordered by ascending date.
func (s *Store) ListBars(ctx context.Context, code string) ([]stock.Bar, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume
		FROM bars
		WHERE code = ?
		ORDER BY date ASC
	`, code)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var bars []stock.Bar
	for rows.Next() {
		var (
			b    stock.Bar
			date string
		)
		if err := rows.Scan(&date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		if b.Date, err = stock.ParseDate(date); err != nil {
			return nil, fmt.Errorf("parse bar date %q: %w", date, err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// UpsertBar writes one bar, replacing any existing row for that day.
func (s *Store) UpsertBar(ctx context.Context, code string, b stock.Bar) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO bars (code, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code, date) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume
	`, code, b.Date.Format(stock.DateLayout), b.Open, b.High, b.Low, b.Close, b.Volume)
	return err
}

// ReplaceBars swaps the full history for a stock in one transaction.
func (s *Store) ReplaceBars(ctx context.Context, code string, bars []stock.Bar) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bars WHERE code = ?`, code); err != nil {
		return fmt.Errorf("delete bars: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (code, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, code, b.Date.Format(stock.DateLayout),
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("insert bar: %w", err)
		}
	}
	return tx.Commit()
}

// LatestBarDate returns the newest bar date for a stock, or ErrNotFound
// when no bars exist.
func (s *Store) LatestBarDate(ctx context.Context, code string) (string, error) {
	var date string
	err := s.DB.QueryRowContext(ctx, `
		SELECT date FROM bars WHERE code = ? ORDER BY date DESC LIMIT 1
	`, code).Scan(&date)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query latest bar date: %w", err)
	}
	return date, nil
}

// CountBars returns the number of stored bars for a stock.
func (s *Store) CountBars(ctx context.Context, code string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM bars WHERE code = ?`, code).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bars: %w", err)
	}
	return n, nil
}
