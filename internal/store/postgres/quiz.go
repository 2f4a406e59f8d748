package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
)

const quizColumns = `id, title, description, teacher_id, code, is_public, questions, created_at, updated_at`

func (s *Store) CreateQuiz(ctx context.Context, q *domain.Quiz) error {
	const stmt = `
INSERT INTO quizzes (` + quizColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`

	_, err := s.db.Exec(ctx, stmt,
		q.ID, q.Title, nullIfEmpty(q.Description), q.TeacherID, q.Code, q.IsPublic, q.Questions, q.CreatedAt, q.UpdatedAt)
	if err != nil {
		return conflict(err, "quiz code is already in use: code=%s", q.Code)
	}

	return nil
}

func (s *Store) GetQuiz(ctx context.Context, id string) (*domain.Quiz, error) {
	const stmt = `SELECT ` + quizColumns + ` FROM quizzes WHERE id = $1;`

	rows, err := s.db.Query(ctx, stmt, id)
	if err != nil {
		return nil, fmt.Errorf("query quiz: %w", err)
	}

	q, err := pgx.CollectExactlyOneRow(rows, scanQuiz)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("quiz not found: id=%s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan quiz: %w", err)
	}

	return &q, nil
}

func (s *Store) FindQuizzesByCode(ctx context.Context, code string) ([]domain.Quiz, error) {
	const stmt = `SELECT ` + quizColumns + ` FROM quizzes WHERE code = $1 ORDER BY created_at;`
	return s.listQuizzes(ctx, stmt, code)
}

func (s *Store) ListQuizzesByTeacher(ctx context.Context, teacherID string) ([]domain.Quiz, error) {
	const stmt = `SELECT ` + quizColumns + ` FROM quizzes WHERE teacher_id = $1 ORDER BY created_at DESC;`
	return s.listQuizzes(ctx, stmt, teacherID)
}

func (s *Store) ListPublicQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	const stmt = `SELECT ` + quizColumns + ` FROM quizzes WHERE is_public ORDER BY created_at DESC;`
	return s.listQuizzes(ctx, stmt)
}

func (s *Store) listQuizzes(ctx context.Context, stmt string, args ...any) ([]domain.Quiz, error) {
	rows, err := s.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query quizzes: %w", err)
	}

	qs, err := pgx.CollectRows(rows, scanQuiz)
	if err != nil {
		return nil, fmt.Errorf("scan quizzes: %w", err)
	}

	return qs, nil
}

func (s *Store) UpdateQuiz(ctx context.Context, q *domain.Quiz) error {
	const stmt = `
UPDATE quizzes
SET title = $2, description = $3, code = $4, is_public = $5, questions = $6, updated_at = $7
WHERE id = $1;`

	tag, err := s.db.Exec(ctx, stmt,
		q.ID, q.Title, nullIfEmpty(q.Description), q.Code, q.IsPublic, q.Questions, q.UpdatedAt)
	if err != nil {
		return conflict(err, "quiz code is already in use: code=%s", q.Code)
	}

	if tag.RowsAffected() == 0 {
		return errors.NotFound("quiz not found: id=%s", q.ID)
	}

	return nil
}

func (s *Store) DeleteQuiz(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM quizzes WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return errors.NotFound("quiz not found: id=%s", id)
	}

	return nil
}

func scanQuiz(r pgx.CollectableRow) (domain.Quiz, error) {
	var (
		q    domain.Quiz
		desc *string
	)

	if err := r.Scan(&q.ID, &q.Title, &desc, &q.TeacherID, &q.Code, &q.IsPublic, &q.Questions, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return domain.Quiz{}, err
	}

	if desc != nil {
		q.Description = *desc
	}
	q.CreatedAt = q.CreatedAt.UTC()
	q.UpdatedAt = q.UpdatedAt.UTC()

	return q, nil
}
