package store

import (
	"context"
	"fmt"

	"quant-core/internal/stock"
)

// MaxHoldingID returns the largest holding id across all runs, 0 when
// the ledger is empty. New holdings take MaxHoldingID+1 so ids stay
// unique across runs.
func (s *Store) MaxHoldingID(ctx context.Context) (int64, error) {
	var max int64
	err := s.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM holdings`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("query max holding id: %w", err)
	}
	return max, nil
}

// CreateHolding inserts an open position row.
func (s *Store) CreateHolding(ctx context.Context, h Holding) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO holdings (id, run, strategy_type, code, name, buy_date, buy_price, amount, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, h.ID, h.Run, h.StrategyType, h.Code, h.Name,
		h.BuyDate.Format(stock.DateLayout), h.BuyPrice, h.Amount, h.Reason)
	return err
}

// CloseHolding fills the sell side of one position.
func (s *Store) CloseHolding(ctx context.Context, id int64, sellDate string, sellPrice, profit, profitRate, fee float64) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE holdings SET sell_date = ?, sell_price = ?, profit = ?, profit_rate = ?, fee = ?
		WHERE id = ? AND sell_date IS NULL
	`, sellDate, sellPrice, profit, profitRate, fee, id)
	if err != nil {
		return fmt.Errorf("close holding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListHoldingsByRun returns every ledger row for one run ordered by
// buy date then id.
func (s *Store) ListHoldingsByRun(ctx context.Context, run int64) ([]Holding, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, run, strategy_type, code, name, buy_date, buy_price, amount,
		       sell_date, sell_price, profit, profit_rate, fee, COALESCE(reason, '')
		FROM holdings
		WHERE run = ?
		ORDER BY buy_date ASC, id ASC
	`, run)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []Holding
	for rows.Next() {
		var (
			h        Holding
			buyDate  string
			sellDate *string
		)
		if err := rows.Scan(&h.ID, &h.Run, &h.StrategyType, &h.Code, &h.Name,
			&buyDate, &h.BuyPrice, &h.Amount, &sellDate, &h.SellPrice, &h.Profit,
			&h.ProfitRate, &h.Fee, &h.Reason); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		if h.BuyDate, err = stock.ParseDate(buyDate); err != nil {
			return nil, fmt.Errorf("parse buy date %q: %w", buyDate, err)
		}
		if sellDate != nil {
			d, err := stock.ParseDate(*sellDate)
			if err != nil {
				return nil, fmt.Errorf("parse sell date %q: %w", *sellDate, err)
			}
			h.SellDate = &d
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// ListRuns returns the distinct run numbers present in the ledger,
// newest first.
func (s *Store) ListRuns(ctx context.Context) ([]int64, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT DISTINCT run FROM holdings ORDER BY run DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []int64
	for rows.Next() {
		var r int64
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ClearHoldings wipes the whole mock ledger across all runs.
func (s *Store) ClearHoldings(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM holdings`)
	return err
}
