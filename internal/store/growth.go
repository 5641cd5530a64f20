package store

import (
	"context"
	"fmt"

	"quant-core/internal/stock"
)

// InsertGrowthMonth records a qualifying month. Repeated scans hit the
// same primary key, so re-recording is a no-op.
func (s *Store) InsertGrowthMonth(ctx context.Context, g GrowthMonth) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT OR IGNORE INTO growth_months (id, code, month, ratio)
		VALUES (?, ?, ?, ?)
	`, g.ID, g.Code, g.Month, g.Ratio)
	return err
}

// ListGrowthMonths returns all recorded growth months for a stock
// ordered by month ascending.
func (s *Store) ListGrowthMonths(ctx context.Context, code string) ([]GrowthMonth, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, code, month, ratio
		FROM growth_months
		WHERE code = ?
		ORDER BY month ASC
	`, code)
	if err != nil {
		return nil, fmt.Errorf("query growth months: %w", err)
	}
	defer rows.Close()

	var months []GrowthMonth
	for rows.Next() {
		var g GrowthMonth
		if err := rows.Scan(&g.ID, &g.Code, &g.Month, &g.Ratio); err != nil {
			return nil, fmt.Errorf("scan growth month: %w", err)
		}
		months = append(months, g)
	}
	return months, rows.Err()
}

// UpsertPriceRange memoizes the monthly extremes for one (code, month).
func (s *Store) UpsertPriceRange(ctx context.Context, r PriceRange) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO price_ranges (id, code, month, high, low, high_date, low_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			high = excluded.high,
			low = excluded.low,
			high_date = excluded.high_date,
			low_date = excluded.low_date
	`, r.ID, r.Code, r.Month, r.High, r.Low,
		r.HighDate.Format(stock.DateLayout), r.LowDate.Format(stock.DateLayout))
	return err
}

// ListPriceRanges returns the memoized monthly extremes for a stock
// ordered by month ascending.
func (s *Store) ListPriceRanges(ctx context.Context, code string) ([]PriceRange, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, code, month, high, low, high_date, low_date
		FROM price_ranges
		WHERE code = ?
		ORDER BY month ASC
	`, code)
	if err != nil {
		return nil, fmt.Errorf("query price ranges: %w", err)
	}
	defer rows.Close()

	var ranges []PriceRange
	for rows.Next() {
		var (
			r                  PriceRange
			highDate, lowDate string
		)
		if err := rows.Scan(&r.ID, &r.Code, &r.Month, &r.High, &r.Low, &highDate, &lowDate); err != nil {
			return nil, fmt.Errorf("scan price range: %w", err)
		}
		if r.HighDate, err = stock.ParseDate(highDate); err != nil {
			return nil, fmt.Errorf("parse high date %q: %w", highDate, err)
		}
		if r.LowDate, err = stock.ParseDate(lowDate); err != nil {
			return nil, fmt.Errorf("parse low date %q: %w", lowDate, err)
		}
		ranges = append(ranges, r)
	}
	return ranges, rows.Err()
}
