// Package store persists bot records through sqlx. Queries are written with
// '?' placeholders and rebound per driver, so the same SQL serves Postgres
// and SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/adminbot/core/logger"
)

// ErrNotFound is returned when a looked up record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store wraps the database handle.
type Store struct {
	db *sqlx.DB
}

// New wraps db.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the handle for seeders and health checks.
func (s *Store) DB() *sqlx.DB { return s.db }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) get(ctx context.Context, dest any, query string, args ...any) error {
	err := s.db.GetContext(ctx, dest, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *Store) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		logger.LogEvent(ctx, logger.STORE, slog.LevelError, "store.exec",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return 0, fmt.Errorf("store: %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: %s rows affected: %w", op, err)
	}
	logger.LogEvent(ctx, logger.STORE, slog.LevelDebug, "store.exec",
		slog.String("op", op),
		slog.Int64("rows", n),
	)
	return n, nil
}
