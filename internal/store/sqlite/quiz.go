package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
)

const quizColumns = `id, title, description, teacher_id, code, is_public, questions, created_at, updated_at`

func (s *Store) CreateQuiz(ctx context.Context, q *domain.Quiz) error {
	questions, err := json.Marshal(q.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quizzes (`+quizColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.Title, q.Description, q.TeacherID, q.Code, q.IsPublic, string(questions), toUnix(q.CreatedAt), toUnix(q.UpdatedAt),
	)
	if err != nil {
		return conflict(err, "quiz code is already in use: code=%s", q.Code)
	}

	return nil
}

func (s *Store) GetQuiz(ctx context.Context, id string) (*domain.Quiz, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = ?`, id)

	q, err := scanQuiz(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("quiz not found: id=%s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan quiz: %w", err)
	}

	return q, nil
}

func (s *Store) FindQuizzesByCode(ctx context.Context, code string) ([]domain.Quiz, error) {
	return s.listQuizzes(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE code = ? ORDER BY created_at`, code)
}

func (s *Store) ListQuizzesByTeacher(ctx context.Context, teacherID string) ([]domain.Quiz, error) {
	return s.listQuizzes(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE teacher_id = ? ORDER BY created_at DESC, rowid DESC`, teacherID)
}

func (s *Store) ListPublicQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	return s.listQuizzes(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE is_public = 1 ORDER BY created_at DESC, rowid DESC`)
}

func (s *Store) listQuizzes(ctx context.Context, stmt string, args ...any) ([]domain.Quiz, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query quizzes: %w", err)
	}
	defer rows.Close()

	qs := []domain.Quiz{}
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		qs = append(qs, *q)
	}

	return qs, rows.Err()
}

func (s *Store) UpdateQuiz(ctx context.Context, q *domain.Quiz) error {
	questions, err := json.Marshal(q.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE quizzes SET title = ?, description = ?, code = ?, is_public = ?, questions = ?, updated_at = ? WHERE id = ?`,
		q.Title, q.Description, q.Code, q.IsPublic, string(questions), toUnix(q.UpdatedAt), q.ID,
	)
	if err != nil {
		return conflict(err, "quiz code is already in use: code=%s", q.Code)
	}

	return expectAffected(res, "quiz not found: id=%s", q.ID)
}

func (s *Store) DeleteQuiz(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quizzes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}

	return expectAffected(res, "quiz not found: id=%s", id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuiz(sc scanner) (*domain.Quiz, error) {
	var (
		q                    domain.Quiz
		questions            string
		createdAt, updatedAt int64
	)

	if err := sc.Scan(&q.ID, &q.Title, &q.Description, &q.TeacherID, &q.Code, &q.IsPublic, &questions, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(questions), &q.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	q.CreatedAt = fromUnix(createdAt)
	q.UpdatedAt = fromUnix(updatedAt)

	return &q, nil
}

func expectAffected(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return errors.NotFound(format, args...)
	}
	return nil
}
