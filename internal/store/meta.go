package store

import (
	"context"
	"fmt"
)

// GetMeta reads the singleton credentials/counter row.
func (s *Store) GetMeta(ctx context.Context) (Meta, error) {
	var m Meta
	err := s.DB.QueryRowContext(ctx, `
		SELECT cookie, token, times FROM meta WHERE id = 1
	`).Scan(&m.Cookie, &m.Token, &m.Times)
	if err != nil {
		return Meta{}, fmt.Errorf("query meta: %w", err)
	}
	return m, nil
}

// SetCredentials stores the quote provider cookie and token.
func (s *Store) SetCredentials(ctx context.Context, cookie, token string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE meta SET cookie = ?, token = ? WHERE id = 1
	`, cookie, token)
	return err
}

// NextRun increments the run counter and returns the new value.
func (s *Store) NextRun(ctx context.Context) (int64, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE meta SET times = times + 1 WHERE id = 1`); err != nil {
		return 0, fmt.Errorf("bump run counter: %w", err)
	}

	var times int64
	if err := tx.QueryRowContext(ctx, `SELECT times FROM meta WHERE id = 1`).Scan(&times); err != nil {
		return 0, fmt.Errorf("read run counter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return times, nil
}
