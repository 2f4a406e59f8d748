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

const sessionColumns = `id, quiz_id, teacher_id, started_at, ended_at, status, settings`

func (s *Store) CreateSession(ctx context.Context, ss *domain.Session) error {
	settings, err := marshalSettings(ss)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quiz_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ss.ID, ss.QuizID, ss.TeacherID, toUnix(ss.StartedAt), toNullUnix(ss.EndedAt), string(ss.Status), settings,
	)
	if err != nil {
		return conflict(err, "session already exists: id=%s", ss.ID)
	}

	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM quiz_sessions WHERE id = ?`, id)

	ss, err := scanSession(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("session not found: id=%s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return ss, nil
}

func (s *Store) FindActiveSessionByQuiz(ctx context.Context, quizID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+sessionColumns+`
FROM quiz_sessions
WHERE quiz_id = ? AND status = 'active'
ORDER BY started_at DESC, rowid DESC
LIMIT 1`, quizID)

	ss, err := scanSession(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return ss, nil
}

// EndSession stores the terminal status of a session that is still active.
// A session that already ended is left untouched and domain.ErrSessionNotActive is returned.
func (s *Store) EndSession(ctx context.Context, ss *domain.Session) error {
	settings, err := marshalSettings(ss)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE quiz_sessions SET ended_at = ?, status = ?, settings = ? WHERE id = ? AND status = 'active'`,
		toNullUnix(ss.EndedAt), string(ss.Status), settings, ss.ID,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		if _, err := s.GetSession(ctx, ss.ID); err != nil {
			return err
		}
		return domain.ErrSessionNotActive
	}

	return nil
}

func (s *Store) ListSessionsByQuiz(ctx context.Context, quizID string) ([]domain.Session, error) {
	return s.listSessions(ctx, `SELECT `+sessionColumns+` FROM quiz_sessions WHERE quiz_id = ? ORDER BY started_at DESC, rowid DESC`, quizID)
}

func (s *Store) ListSessionsByTeacher(ctx context.Context, teacherID string) ([]domain.Session, error) {
	return s.listSessions(ctx, `SELECT `+sessionColumns+` FROM quiz_sessions WHERE teacher_id = ? ORDER BY started_at DESC, rowid DESC`, teacherID)
}

func (s *Store) ListSessionsByStatus(ctx context.Context, status domain.SessionStatus) ([]domain.Session, error) {
	return s.listSessions(ctx, `SELECT `+sessionColumns+` FROM quiz_sessions WHERE status = ? ORDER BY started_at DESC, rowid DESC`, string(status))
}

func (s *Store) listSessions(ctx context.Context, stmt string, args ...any) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		ss, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *ss)
	}

	return sessions, rows.Err()
}

func (s *Store) FindParticipant(ctx context.Context, sessionID, studentID string) (*domain.Participant, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT session_id, student_id, joined_at, score
FROM session_participants
WHERE session_id = ? AND student_id = ?`, sessionID, studentID)

	p, err := scanParticipant(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan participant: %w", err)
	}

	return p, nil
}

func (s *Store) AddParticipant(ctx context.Context, p *domain.Participant) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_participants (session_id, student_id, joined_at, score) VALUES (?, ?, ?, ?)`,
		p.SessionID, p.StudentID, toUnix(p.JoinedAt), p.Score,
	)
	if err != nil {
		return conflict(err, "student already joined session: session=%s student=%s", p.SessionID, p.StudentID)
	}

	return nil
}

func (s *Store) ListParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT session_id, student_id, joined_at, score
FROM session_participants
WHERE session_id = ?
ORDER BY joined_at, rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	ps := []domain.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		ps = append(ps, *p)
	}

	return ps, rows.Err()
}

func (s *Store) InsertAnswer(ctx context.Context, a *domain.Answer) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO student_answers (session_id, student_id, question_id, answer_id, is_correct, submitted_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		a.SessionID, a.StudentID, a.QuestionID, a.AnswerID, a.IsCorrect, toUnix(a.SubmittedAt),
	)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}

	return nil
}

func (s *Store) ListAnswers(ctx context.Context, sessionID string) ([]domain.Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT session_id, student_id, question_id, answer_id, is_correct, submitted_at
FROM student_answers
WHERE session_id = ?
ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	answers := []domain.Answer{}
	for rows.Next() {
		var (
			a           domain.Answer
			submittedAt int64
		)
		if err := rows.Scan(&a.SessionID, &a.StudentID, &a.QuestionID, &a.AnswerID, &a.IsCorrect, &submittedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		a.SubmittedAt = fromUnix(submittedAt)
		answers = append(answers, a)
	}

	return answers, rows.Err()
}

func (s *Store) IncrementScore(ctx context.Context, sessionID, studentID string, delta int) (int, error) {
	var score int
	err := s.db.QueryRowContext(ctx, `
UPDATE session_participants
SET score = score + ?
WHERE session_id = ? AND student_id = ?
RETURNING score`, delta, sessionID, studentID).Scan(&score)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, errors.NotFound("participant not found: session=%s student=%s", sessionID, studentID)
	}
	if err != nil {
		return 0, fmt.Errorf("increment score: %w", err)
	}

	return score, nil
}

func scanSession(sc scanner) (*domain.Session, error) {
	var (
		ss        domain.Session
		startedAt int64
		endedAt   sql.NullInt64
		status    string
		settings  string
	)

	if err := sc.Scan(&ss.ID, &ss.QuizID, &ss.TeacherID, &startedAt, &endedAt, &status, &settings); err != nil {
		return nil, err
	}

	ss.StartedAt = fromUnix(startedAt)
	ss.EndedAt = fromNullUnix(endedAt)
	ss.Status = domain.SessionStatus(status)
	if err := json.Unmarshal([]byte(settings), &ss.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if ss.Settings == nil {
		ss.Settings = map[string]any{}
	}

	return &ss, nil
}

func scanParticipant(sc scanner) (*domain.Participant, error) {
	var (
		p        domain.Participant
		joinedAt int64
	)

	if err := sc.Scan(&p.SessionID, &p.StudentID, &joinedAt, &p.Score); err != nil {
		return nil, err
	}
	p.JoinedAt = fromUnix(joinedAt)

	return &p, nil
}

func marshalSettings(ss *domain.Session) (string, error) {
	if ss.Settings == nil {
		return "{}", nil
	}

	b, err := json.Marshal(ss.Settings)
	if err != nil {
		return "", fmt.Errorf("marshal settings: %w", err)
	}

	return string(b), nil
}
