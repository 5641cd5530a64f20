package store

import (
	"context"
	"fmt"

	"quant-core/internal/stock"
)

// InsertBacktestResult writes the summary row for a finished run.
func (s *Store) InsertBacktestResult(ctx context.Context, r BacktestResult) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO backtest_results (
			run, strategy_type, start_balance, final_cash, total_profit,
			max_profit, min_profit, transactions, max_concurrent,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Run, r.StrategyType, r.StartBalance, r.FinalCash, r.TotalProfit,
		r.MaxProfit, r.MinProfit, r.Transactions, r.MaxConcurrent,
		r.StartedAt.Format(stock.DateLayout), r.FinishedAt.Format(stock.DateLayout))
	return err
}

// ListBacktestResults returns run summaries, newest run first.
func (s *Store) ListBacktestResults(ctx context.Context, limit int) ([]BacktestResult, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, run, strategy_type, start_balance, final_cash, total_profit,
		       max_profit, min_profit, transactions, max_concurrent,
		       started_at, finished_at
		FROM backtest_results
		ORDER BY run DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query backtest results: %w", err)
	}
	defer rows.Close()

	var results []BacktestResult
	for rows.Next() {
		var (
			r                    BacktestResult
			startedAt, finishedAt string
		)
		if err := rows.Scan(&r.ID, &r.Run, &r.StrategyType, &r.StartBalance, &r.FinalCash,
			&r.TotalProfit, &r.MaxProfit, &r.MinProfit, &r.Transactions, &r.MaxConcurrent,
			&startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan backtest result: %w", err)
		}
		if r.StartedAt, err = stock.ParseDate(startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at %q: %w", startedAt, err)
		}
		if r.FinishedAt, err = stock.ParseDate(finishedAt); err != nil {
			return nil, fmt.Errorf("parse finished_at %q: %w", finishedAt, err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
