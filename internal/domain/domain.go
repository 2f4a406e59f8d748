package domain

import (
	"encoding/json"
	"time"

	"github.com/victornm/quizroom/internal/errors"
)

// ErrSessionNotActive is returned for any lifecycle operation against a completed or cancelled session.
var ErrSessionNotActive = errors.FailedPrecondition("session is not active")

// DefaultTimeLimit is the per-question time limit in seconds when none is given.
const DefaultTimeLimit = 30

// Entity is implemented by everything that is validated before it is persisted.
type Entity interface {
	Identity() string
	Validate() error
}

// Quiz is a teacher-owned, ordered list of multiple-choice questions reachable through a join code.
type Quiz struct {
	ID          string     `json:"id" validate:"required"`
	Title       string     `json:"title" validate:"notblank"`
	Description string     `json:"description"`
	TeacherID   string     `json:"teacherId" validate:"required"`
	Code        string     `json:"code" validate:"required"`
	IsPublic    bool       `json:"isPublic"`
	Questions   []Question `json:"questions" validate:"min=1,dive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (q *Quiz) Identity() string { return q.ID }

func (q *Quiz) Validate() error { return validateEntity("quiz", q) }

func (q *Quiz) QuestionCount() int { return len(q.Questions) }

// Question returns the question with the given id.
func (q *Quiz) Question(id string) (Question, bool) {
	for _, qq := range q.Questions {
		if qq.ID == id {
			return qq, true
		}
	}
	return Question{}, false
}

// OwnedBy reports whether the quiz belongs to the given teacher.
func (q *Quiz) OwnedBy(teacherID string) bool {
	return q.TeacherID != "" && q.TeacherID == teacherID
}

type Question struct {
	ID              string   `json:"id" validate:"required"`
	Text            string   `json:"text" validate:"notblank"`
	Options         []Option `json:"options" validate:"min=2,dive"`
	CorrectAnswerID string   `json:"correctAnswer" validate:"required"`
	TimeLimit       int      `json:"timeLimit" validate:"gt=0"`
}

func (q *Question) Identity() string { return q.ID }

func (q *Question) Validate() error { return validateEntity("question", q) }

func (q *Question) IsCorrectAnswer(optionID string) bool {
	return optionID == q.CorrectAnswerID
}

// Option returns the option with the given id.
func (q *Question) Option(id string) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// UnmarshalJSON accepts both the camelCase and the snake_case spelling of stored questions
// and applies the default time limit.
func (q *Question) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID                 string   `json:"id"`
		Text               string   `json:"text"`
		Options            []Option `json:"options"`
		CorrectAnswer      string   `json:"correctAnswer"`
		CorrectAnswerSnake string   `json:"correct_answer"`
		TimeLimit          int      `json:"timeLimit"`
		TimeLimitSnake     int      `json:"time_limit"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*q = Question{
		ID:              raw.ID,
		Text:            raw.Text,
		Options:         raw.Options,
		CorrectAnswerID: firstNonEmpty(raw.CorrectAnswer, raw.CorrectAnswerSnake),
		TimeLimit:       raw.TimeLimit,
	}
	if q.TimeLimit == 0 {
		q.TimeLimit = raw.TimeLimitSnake
	}
	if q.TimeLimit == 0 {
		q.TimeLimit = DefaultTimeLimit
	}

	return nil
}

type Option struct {
	ID   string `json:"id" validate:"notblank"`
	Text string `json:"text" validate:"notblank"`
}

func (o *Option) Identity() string { return o.ID }

func (o *Option) Validate() error { return validateEntity("option", o) }

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusActive, SessionStatusCompleted, SessionStatusCancelled:
		return true
	}
	return false
}

// Session represents one live run of a quiz.
type Session struct {
	ID        string         `json:"id" validate:"required"`
	QuizID    string         `json:"quizId" validate:"required"`
	TeacherID string         `json:"teacherId" validate:"required"`
	StartedAt time.Time      `json:"startedAt"`
	EndedAt   *time.Time     `json:"endedAt"`
	Status    SessionStatus  `json:"status" validate:"oneof=active completed cancelled"`
	Settings  map[string]any `json:"settings"`
}

// NewSession returns an active session started at now.
func NewSession(id, quizID, teacherID string, now time.Time) *Session {
	return &Session{
		ID:        id,
		QuizID:    quizID,
		TeacherID: teacherID,
		StartedAt: now,
		Status:    SessionStatusActive,
		Settings:  map[string]any{},
	}
}

func (s *Session) Identity() string { return s.ID }

func (s *Session) Validate() error { return validateEntity("session", s) }

func (s *Session) IsActive() bool { return s.Status == SessionStatusActive }

// Complete moves an active session to completed. Terminal sessions are left untouched.
func (s *Session) Complete(now time.Time) error {
	return s.end(SessionStatusCompleted, now)
}

// Cancel moves an active session to cancelled. Terminal sessions are left untouched.
func (s *Session) Cancel(now time.Time) error {
	return s.end(SessionStatusCancelled, now)
}

func (s *Session) end(status SessionStatus, now time.Time) error {
	if !s.IsActive() {
		return ErrSessionNotActive
	}

	s.Status = status
	s.EndedAt = &now
	return nil
}

// Participant is a student's membership in a session.
type Participant struct {
	SessionID string    `json:"sessionId"`
	StudentID string    `json:"studentId"`
	JoinedAt  time.Time `json:"joinedAt"`
	Score     int       `json:"score"`
}

// Answer is one submission attempt. Answers are append-only.
type Answer struct {
	SessionID   string    `json:"sessionId"`
	StudentID   string    `json:"studentId"`
	QuestionID  string    `json:"questionId"`
	AnswerID    string    `json:"answerId"`
	IsCorrect   bool      `json:"isCorrect"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Score represents a student's score within a quiz session.
type Score struct {
	SessionID  string
	StudentID  string
	TotalScore int
	UpdateTime time.Time
}

// Leaderboard represents a list of students and their scores within a quiz session.
// The list is sorted by score in descending order.
type Leaderboard struct {
	SessionID string
	Entries   []LeaderboardEntry
}

type LeaderboardEntry struct {
	StudentID string
	Score     float64
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
