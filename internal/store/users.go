package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateUser inserts a new API account.
func (s *Store) CreateUser(ctx context.Context, u User) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash)
		VALUES (?, ?, ?)
	`, u.ID, u.Email, u.PasswordHash)
	return err
}

// GetUserByEmail looks up a user for login.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}
