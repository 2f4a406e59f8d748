// Package postgres implements the quiz and session repositories on PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/quizroom/internal/errors"
)

const codeUniqueViolation = "23505"

//go:embed schema.sql
var schema string

// Store is backed by a single pool shared by every repository method.
type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Migrate creates the tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.db.Close()
}

// conflict converts unique violations into errors.CodeAlreadyExists and leaves other errors untouched.
func conflict(err error, format string, args ...any) error {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef(format, args...),
			errors.WithCause(err),
		)
	}
	return err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
