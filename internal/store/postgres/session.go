package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
)

const sessionColumns = `id, quiz_id, teacher_id, started_at, ended_at, status, settings`

func (s *Store) CreateSession(ctx context.Context, ss *domain.Session) error {
	const stmt = `
INSERT INTO quiz_sessions (` + sessionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7);`

	_, err := s.db.Exec(ctx, stmt,
		ss.ID, ss.QuizID, ss.TeacherID, ss.StartedAt, ss.EndedAt, ss.Status, settingsOf(ss))
	if err != nil {
		return conflict(err, "session already exists: id=%s", ss.ID)
	}

	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	const stmt = `SELECT ` + sessionColumns + ` FROM quiz_sessions WHERE id = $1;`

	ss, err := s.getSession(ctx, stmt, id)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("session not found: id=%s", id)
	}
	if err != nil {
		return nil, err
	}

	return ss, nil
}

func (s *Store) FindActiveSessionByQuiz(ctx context.Context, quizID string) (*domain.Session, error) {
	const stmt = `
SELECT ` + sessionColumns + `
FROM quiz_sessions
WHERE quiz_id = $1 AND status = 'active'
ORDER BY started_at DESC
LIMIT 1;`

	ss, err := s.getSession(ctx, stmt, quizID)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return ss, nil
}

func (s *Store) getSession(ctx context.Context, stmt string, args ...any) (*domain.Session, error) {
	rows, err := s.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	ss, err := pgx.CollectExactlyOneRow(rows, scanSession)
	if err != nil {
		return nil, err
	}

	return &ss, nil
}

// EndSession stores the terminal status of a session that is still active.
// A session that already ended is left untouched and domain.ErrSessionNotActive is returned.
func (s *Store) EndSession(ctx context.Context, ss *domain.Session) error {
	const stmt = `UPDATE quiz_sessions SET ended_at = $2, status = $3, settings = $4 WHERE id = $1 AND status = 'active';`

	tag, err := s.db.Exec(ctx, stmt, ss.ID, ss.EndedAt, ss.Status, settingsOf(ss))
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		if _, err := s.GetSession(ctx, ss.ID); err != nil {
			return err
		}
		return domain.ErrSessionNotActive
	}

	return nil
}

func (s *Store) ListSessionsByQuiz(ctx context.Context, quizID string) ([]domain.Session, error) {
	const stmt = `SELECT ` + sessionColumns + ` FROM quiz_sessions WHERE quiz_id = $1 ORDER BY started_at DESC;`
	return s.listSessions(ctx, stmt, quizID)
}

func (s *Store) ListSessionsByTeacher(ctx context.Context, teacherID string) ([]domain.Session, error) {
	const stmt = `SELECT ` + sessionColumns + ` FROM quiz_sessions WHERE teacher_id = $1 ORDER BY started_at DESC;`
	return s.listSessions(ctx, stmt, teacherID)
}

func (s *Store) ListSessionsByStatus(ctx context.Context, status domain.SessionStatus) ([]domain.Session, error) {
	const stmt = `SELECT ` + sessionColumns + ` FROM quiz_sessions WHERE status = $1 ORDER BY started_at DESC;`
	return s.listSessions(ctx, stmt, status)
}

func (s *Store) listSessions(ctx context.Context, stmt string, args ...any) ([]domain.Session, error) {
	rows, err := s.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}

	sessions, err := pgx.CollectRows(rows, scanSession)
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}

	return sessions, nil
}

func (s *Store) FindParticipant(ctx context.Context, sessionID, studentID string) (*domain.Participant, error) {
	const stmt = `
SELECT session_id, student_id, joined_at, score
FROM session_participants
WHERE session_id = $1 AND student_id = $2;`

	rows, err := s.db.Query(ctx, stmt, sessionID, studentID)
	if err != nil {
		return nil, fmt.Errorf("query participant: %w", err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanParticipant)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan participant: %w", err)
	}

	return &p, nil
}

func (s *Store) AddParticipant(ctx context.Context, p *domain.Participant) error {
	const stmt = `
INSERT INTO session_participants (session_id, student_id, joined_at, score)
VALUES ($1, $2, $3, $4);`

	_, err := s.db.Exec(ctx, stmt, p.SessionID, p.StudentID, p.JoinedAt, p.Score)
	if err != nil {
		return conflict(err, "student already joined session: session=%s student=%s", p.SessionID, p.StudentID)
	}

	return nil
}

func (s *Store) ListParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	const stmt = `
SELECT session_id, student_id, joined_at, score
FROM session_participants
WHERE session_id = $1
ORDER BY joined_at, student_id;`

	rows, err := s.db.Query(ctx, stmt, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}

	ps, err := pgx.CollectRows(rows, scanParticipant)
	if err != nil {
		return nil, fmt.Errorf("scan participants: %w", err)
	}

	return ps, nil
}

func (s *Store) InsertAnswer(ctx context.Context, a *domain.Answer) error {
	const stmt = `
INSERT INTO student_answers (session_id, student_id, question_id, answer_id, is_correct, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6);`

	if _, err := s.db.Exec(ctx, stmt, a.SessionID, a.StudentID, a.QuestionID, a.AnswerID, a.IsCorrect, a.SubmittedAt); err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}

	return nil
}

func (s *Store) ListAnswers(ctx context.Context, sessionID string) ([]domain.Answer, error) {
	const stmt = `
SELECT session_id, student_id, question_id, answer_id, is_correct, submitted_at
FROM student_answers
WHERE session_id = $1
ORDER BY id;`

	rows, err := s.db.Query(ctx, stmt, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}

	answers, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Answer, error) {
		var a domain.Answer
		if err := r.Scan(&a.SessionID, &a.StudentID, &a.QuestionID, &a.AnswerID, &a.IsCorrect, &a.SubmittedAt); err != nil {
			return domain.Answer{}, err
		}
		a.SubmittedAt = a.SubmittedAt.UTC()
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan answers: %w", err)
	}

	return answers, nil
}

// IncrementScore is a single UPDATE so concurrent submissions never lose an increment.
func (s *Store) IncrementScore(ctx context.Context, sessionID, studentID string, delta int) (int, error) {
	const stmt = `
UPDATE session_participants
SET score = score + $3
WHERE session_id = $1 AND student_id = $2
RETURNING score;`

	var score int
	err := s.db.QueryRow(ctx, stmt, sessionID, studentID, delta).Scan(&score)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return 0, errors.NotFound("participant not found: session=%s student=%s", sessionID, studentID)
	}
	if err != nil {
		return 0, fmt.Errorf("increment score: %w", err)
	}

	return score, nil
}

func scanSession(r pgx.CollectableRow) (domain.Session, error) {
	var ss domain.Session
	if err := r.Scan(&ss.ID, &ss.QuizID, &ss.TeacherID, &ss.StartedAt, &ss.EndedAt, &ss.Status, &ss.Settings); err != nil {
		return domain.Session{}, err
	}

	ss.StartedAt = ss.StartedAt.UTC()
	if ss.EndedAt != nil {
		t := ss.EndedAt.UTC()
		ss.EndedAt = &t
	}
	if ss.Settings == nil {
		ss.Settings = map[string]any{}
	}

	return ss, nil
}

func scanParticipant(r pgx.CollectableRow) (domain.Participant, error) {
	var p domain.Participant
	if err := r.Scan(&p.SessionID, &p.StudentID, &p.JoinedAt, &p.Score); err != nil {
		return domain.Participant{}, err
	}
	p.JoinedAt = p.JoinedAt.UTC()
	return p, nil
}

func settingsOf(ss *domain.Session) map[string]any {
	if ss.Settings == nil {
		return map[string]any{}
	}
	return ss.Settings
}
