package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
	"github.com/victornm/quizroom/internal/event"
	"github.com/victornm/quizroom/internal/telemetry"
)

// Repository persists sessions, participants and answers.
// Lookups that may legitimately find nothing (active session, participant) return nil, nil.
type Repository interface {
	CreateSession(ctx context.Context, ss *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	// EndSession persists a completed or cancelled session. It only succeeds while the stored
	// session is still active and returns domain.ErrSessionNotActive otherwise.
	EndSession(ctx context.Context, ss *domain.Session) error
	// FindActiveSessionByQuiz returns the most recently started active session of the quiz.
	FindActiveSessionByQuiz(ctx context.Context, quizID string) (*domain.Session, error)
	ListSessionsByQuiz(ctx context.Context, quizID string) ([]domain.Session, error)
	ListSessionsByTeacher(ctx context.Context, teacherID string) ([]domain.Session, error)
	ListSessionsByStatus(ctx context.Context, status domain.SessionStatus) ([]domain.Session, error)

	FindParticipant(ctx context.Context, sessionID, studentID string) (*domain.Participant, error)
	// AddParticipant returns errors.CodeAlreadyExists when the (session, student) pair is taken.
	AddParticipant(ctx context.Context, p *domain.Participant) error
	ListParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error)

	InsertAnswer(ctx context.Context, a *domain.Answer) error
	ListAnswers(ctx context.Context, sessionID string) ([]domain.Answer, error)
	// IncrementScore adds delta to the participant's score in a single store-side statement
	// and returns the new total.
	IncrementScore(ctx context.Context, sessionID, studentID string, delta int) (int, error)
}

// Quizzes resolves the quizzes sessions are run for.
type Quizzes interface {
	GetQuiz(ctx context.Context, id string) (*domain.Quiz, error)
	GetQuizByCode(ctx context.Context, code string) (*domain.Quiz, error)
}

type Config struct {
	Repository Repository
	Quizzes    Quizzes
	EventBus   *event.Bus
	Now        func() time.Time
}

type Service struct {
	repo    Repository
	quizzes Quizzes
	eb      *event.Bus
	now     func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		repo:    c.Repository,
		quizzes: c.Quizzes,
		eb:      c.EventBus,
		now:     c.Now,
	}

	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	// Events go nowhere without a bus; nothing subscribes to a private one.
	if s.eb == nil {
		s.eb = event.NewBus()
	}

	return s
}

// StartSessionRequest represents a teacher starting to present a quiz.
type StartSessionRequest struct {
	QuizID    string
	TeacherID string
}

// StartSession returns the quiz's active session, creating one if there is none.
// Only the teacher owning the quiz may start it.
func (s *Service) StartSession(ctx context.Context, req StartSessionRequest) (*domain.Session, error) {
	q, err := s.quizzes.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return nil, err
	}

	if !q.OwnedBy(req.TeacherID) {
		return nil, errors.PermissionDenied("you do not have permission to start this quiz")
	}

	return s.findOrCreateActive(ctx, q.ID, req.TeacherID)
}

// findOrCreateActive is a read-then-write sequence. Two concurrent callers may both create a session.
func (s *Service) findOrCreateActive(ctx context.Context, quizID, teacherID string) (*domain.Session, error) {
	active, err := s.repo.FindActiveSessionByQuiz(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("find active session: %w", err)
	}

	if active != nil {
		return active, nil
	}

	return s.createSession(ctx, quizID, teacherID)
}

func (s *Service) createSession(ctx context.Context, quizID, teacherID string) (*domain.Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	ss := domain.NewSession(id.String(), quizID, teacherID, s.now())
	if err := ss.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateSession(ctx, ss); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	telemetry.SessionsStarted.Inc()
	slog.InfoContext(ctx, "session: started", "session_id", ss.ID, "quiz_id", quizID, "teacher_id", teacherID)

	s.eb.Publish(ctx, domain.EventSessionStarted{
		Session: *ss,
	})

	return ss, nil
}

type JoinSessionRequest struct {
	QuizID    string
	StudentID string
}

// JoinSession attaches the student to the quiz's active session and returns its id.
// When the teacher has not started the quiz yet, a session owned by the quiz's teacher is created
// so students are never blocked. Joining twice is idempotent.
func (s *Service) JoinSession(ctx context.Context, req JoinSessionRequest) (string, error) {
	if req.StudentID == "" {
		return "", errors.InvalidArgument("student id is required")
	}

	q, err := s.quizzes.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return "", err
	}

	active, err := s.findOrCreateActive(ctx, q.ID, q.TeacherID)
	if err != nil {
		return "", err
	}

	if _, err := s.attach(ctx, active.ID, req.StudentID); err != nil {
		return "", err
	}

	return active.ID, nil
}

type JoinByCodeRequest struct {
	Code      string
	StudentID string
}

type JoinResult struct {
	SessionID string
	Quiz      *domain.Quiz
}

// JoinByCode resolves the join code and joins the quiz's active session.
func (s *Service) JoinByCode(ctx context.Context, req JoinByCodeRequest) (*JoinResult, error) {
	q, err := s.quizzes.GetQuizByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	id, err := s.JoinSession(ctx, JoinSessionRequest{
		QuizID:    q.ID,
		StudentID: req.StudentID,
	})
	if err != nil {
		return nil, err
	}

	return &JoinResult{SessionID: id, Quiz: q}, nil
}

// attach adds the student to the session unless already there. The read-before-write check
// races with concurrent joins; the store's unique key on (session, student) settles the loser.
func (s *Service) attach(ctx context.Context, sessionID, studentID string) (*domain.Participant, error) {
	p, err := s.repo.FindParticipant(ctx, sessionID, studentID)
	if err != nil {
		return nil, fmt.Errorf("find participant: %w", err)
	}

	if p != nil {
		return p, nil
	}

	p = &domain.Participant{
		SessionID: sessionID,
		StudentID: studentID,
		JoinedAt:  s.now(),
	}

	err = s.repo.AddParticipant(ctx, p)
	if errors.Is(err, errors.CodeAlreadyExists) {
		existing, err := s.repo.FindParticipant(ctx, sessionID, studentID)
		if err != nil {
			return nil, fmt.Errorf("find participant: %w", err)
		}
		if existing == nil {
			return nil, errors.Internal(fmt.Errorf("participant vanished after conflict: session=%s student=%s", sessionID, studentID))
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("add participant: %w", err)
	}

	telemetry.ParticipantsJoined.Inc()
	slog.InfoContext(ctx, "session: participant joined", "session_id", sessionID, "student_id", studentID)

	s.eb.Publish(ctx, domain.EventParticipantJoined{
		Participant: *p,
	})

	return p, nil
}

// EndSessionRequest completes or cancels a session. When TeacherID is set it must own the session.
type EndSessionRequest struct {
	SessionID string
	TeacherID string
}

// CompleteSession moves an active session to completed.
func (s *Service) CompleteSession(ctx context.Context, req EndSessionRequest) (*domain.Session, error) {
	return s.endSession(ctx, req, (*domain.Session).Complete)
}

// CancelSession moves an active session to cancelled.
func (s *Service) CancelSession(ctx context.Context, req EndSessionRequest) (*domain.Session, error) {
	return s.endSession(ctx, req, (*domain.Session).Cancel)
}

func (s *Service) endSession(ctx context.Context, req EndSessionRequest, transition func(*domain.Session, time.Time) error) (*domain.Session, error) {
	ss, err := s.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	if req.TeacherID != "" && ss.TeacherID != req.TeacherID {
		return nil, errors.PermissionDenied("you do not have permission to end this session")
	}

	if err := transition(ss, s.now()); err != nil {
		return nil, err
	}

	// The stored status is checked again so a concurrent complete and cancel cannot both win.
	if err := s.repo.EndSession(ctx, ss); err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}

	telemetry.SessionsEnded.WithLabelValues(string(ss.Status)).Inc()
	slog.InfoContext(ctx, "session: ended", "session_id", ss.ID, "status", ss.Status)

	s.eb.Publish(ctx, domain.EventSessionEnded{
		Session: *ss,
	})

	return ss, nil
}

type SubmitAnswerRequest struct {
	SessionID  string
	StudentID  string
	QuestionID string
	AnswerID   string
	IsCorrect  bool
}

type SubmitAnswerResponse struct {
	IsCorrect  bool
	TotalScore int
}

// SubmitAnswer appends an answer to an active session and, when correct, increments the
// participant's score by one. Resubmissions are not deduplicated.
func (s *Service) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (*SubmitAnswerResponse, error) {
	if req.StudentID == "" || req.QuestionID == "" || req.AnswerID == "" {
		return nil, errors.InvalidArgument("student, question and answer are required")
	}

	ss, err := s.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	if !ss.IsActive() {
		return nil, domain.ErrSessionNotActive
	}

	p, err := s.repo.FindParticipant(ctx, req.SessionID, req.StudentID)
	if err != nil {
		return nil, fmt.Errorf("find participant: %w", err)
	}
	if p == nil {
		return nil, errors.NotFound("student has not joined session: session=%s student=%s", req.SessionID, req.StudentID)
	}

	now := s.now()
	if err := s.repo.InsertAnswer(ctx, &domain.Answer{
		SessionID:   req.SessionID,
		StudentID:   req.StudentID,
		QuestionID:  req.QuestionID,
		AnswerID:    req.AnswerID,
		IsCorrect:   req.IsCorrect,
		SubmittedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("insert answer: %w", err)
	}

	telemetry.AnswersSubmitted.WithLabelValues(fmt.Sprint(req.IsCorrect)).Inc()

	resp := &SubmitAnswerResponse{
		IsCorrect:  req.IsCorrect,
		TotalScore: p.Score,
	}

	if !req.IsCorrect {
		return resp, nil
	}

	resp.TotalScore, err = s.repo.IncrementScore(ctx, req.SessionID, req.StudentID, 1)
	if err != nil {
		return nil, fmt.Errorf("increment score: %w", err)
	}

	s.eb.Publish(ctx, domain.EventScoreUpdated{
		Score: domain.Score{
			SessionID:  req.SessionID,
			StudentID:  req.StudentID,
			TotalScore: resp.TotalScore,
			UpdateTime: now,
		},
	})

	return resp, nil
}

type AnswerQuestionRequest struct {
	SessionID  string
	StudentID  string
	QuestionID string
	AnswerID   string
}

// AnswerQuestion grades the chosen option against the session's quiz and submits the answer.
func (s *Service) AnswerQuestion(ctx context.Context, req AnswerQuestionRequest) (*SubmitAnswerResponse, error) {
	ss, err := s.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	q, err := s.quizzes.GetQuiz(ctx, ss.QuizID)
	if err != nil {
		return nil, err
	}

	question, ok := q.Question(req.QuestionID)
	if !ok {
		return nil, errors.NotFound("question not found: quiz=%s question=%s", q.ID, req.QuestionID)
	}

	if _, ok := question.Option(req.AnswerID); !ok {
		return nil, errors.InvalidArgument("answer %q is not an option of question %s", req.AnswerID, question.ID)
	}

	return s.SubmitAnswer(ctx, SubmitAnswerRequest{
		SessionID:  req.SessionID,
		StudentID:  req.StudentID,
		QuestionID: req.QuestionID,
		AnswerID:   req.AnswerID,
		IsCorrect:  question.IsCorrectAnswer(req.AnswerID),
	})
}

// GetSessionParticipants returns the ids of the students who joined the session, in join order.
func (s *Service) GetSessionParticipants(ctx context.Context, sessionID string) ([]string, error) {
	ps, err := s.repo.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.StudentID)
	}

	return ids, nil
}

func (s *Service) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, errors.InvalidArgument("session id is required")
	}

	return s.repo.GetSession(ctx, id)
}

// ListQuizSessions returns the sessions of a quiz, newest first. Only the quiz owner may list them.
func (s *Service) ListQuizSessions(ctx context.Context, quizID, teacherID string) ([]domain.Session, error) {
	q, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	if !q.OwnedBy(teacherID) {
		return nil, errors.PermissionDenied("you do not have permission to view sessions of this quiz")
	}

	return s.repo.ListSessionsByQuiz(ctx, quizID)
}

// ListTeacherSessions returns the teacher's sessions, newest first, optionally filtered by status.
func (s *Service) ListTeacherSessions(ctx context.Context, teacherID string, status domain.SessionStatus) ([]domain.Session, error) {
	if teacherID == "" {
		return nil, errors.InvalidArgument("teacher id is required")
	}

	if status == "" {
		return s.repo.ListSessionsByTeacher(ctx, teacherID)
	}

	if !status.Valid() {
		return nil, errors.InvalidArgument("unknown session status %q", status)
	}

	all, err := s.repo.ListSessionsByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list sessions by status: %w", err)
	}

	sessions := make([]domain.Session, 0, len(all))
	for _, ss := range all {
		if ss.TeacherID == teacherID {
			sessions = append(sessions, ss)
		}
	}

	return sessions, nil
}
