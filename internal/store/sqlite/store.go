// Package sqlite implements the quiz and session repositories on an embedded SQLite file.
// It backs local runs and the service tests.
package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/victornm/quizroom/internal/errors"
)

const defaultPath = "quizroom.db"

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		path = defaultPath
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func conflict(err error, format string, args ...any) error {
	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef(format, args...),
			errors.WithCause(err),
		)
	}
	return err
}

// Timestamps are stored as unix microseconds in UTC.
func toUnix(t time.Time) int64 { return t.UTC().UnixMicro() }

func fromUnix(v int64) time.Time { return time.UnixMicro(v).UTC() }

func toNullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toUnix(*t), Valid: true}
}

func fromNullUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromUnix(v.Int64)
	return &t
}
