package store

import (
	"context"
	"database/sql"
	"fmt"
)

// User is a bot user.
type User struct {
	ID        int64           `db:"user_id"`
	FirstName string          `db:"first_name"`
	Username  string          `db:"username"`
	Balance   sql.NullFloat64 `db:"balance"`
}

// BalanceValue returns the balance, treating an unset balance as 0.
func (u User) BalanceValue() float64 {
	if u.Balance.Valid {
		return u.Balance.Float64
	}
	return 0
}

// UpsertUser inserts u or refreshes its profile fields. The balance of an
// existing user is kept.
func (s *Store) UpsertUser(ctx context.Context, u User) error {
	_, err := s.exec(ctx, "upsert_user", `
		INSERT INTO users (user_id, first_name, username)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET first_name = excluded.first_name, username = excluded.username`,
		u.ID, u.FirstName, u.Username)
	return err
}

// FindUser returns the user or ErrNotFound.
func (s *Store) FindUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := s.get(ctx, &u, `SELECT user_id, first_name, username, balance FROM users WHERE user_id = ?`, id)
	if err != nil {
		return User{}, fmt.Errorf("store: find user %d: %w", id, err)
	}
	return u, nil
}

// AddBalance adds amount to the user's balance, counting an unset balance as
// 0, and returns the new balance.
func (s *Store) AddBalance(ctx context.Context, id int64, amount float64) (float64, error) {
	n, err := s.exec(ctx, "add_balance",
		`UPDATE users SET balance = COALESCE(balance, 0) + ? WHERE user_id = ?`, amount, id)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("store: add balance to %d: %w", id, ErrNotFound)
	}
	var balance float64
	if err := s.get(ctx, &balance, `SELECT balance FROM users WHERE user_id = ?`, id); err != nil {
		return 0, fmt.Errorf("store: read balance of %d: %w", id, err)
	}
	return balance, nil
}

// CountUsers returns the number of users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.get(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("store: count users: %w", err)
	}
	return n, nil
}
