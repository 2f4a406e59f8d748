package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
	"github.com/victornm/quizroom/internal/joincode"
)

const defaultCodeRetries = 3

// Repository persists quizzes. Implementations return errors.CodeNotFound for missing rows
// and errors.CodeAlreadyExists when the join code is already taken.
type Repository interface {
	CreateQuiz(ctx context.Context, q *domain.Quiz) error
	GetQuiz(ctx context.Context, id string) (*domain.Quiz, error)
	// FindQuizzesByCode returns every quiz stored under the code. There should be at most one.
	FindQuizzesByCode(ctx context.Context, code string) ([]domain.Quiz, error)
	ListQuizzesByTeacher(ctx context.Context, teacherID string) ([]domain.Quiz, error)
	ListPublicQuizzes(ctx context.Context) ([]domain.Quiz, error)
	UpdateQuiz(ctx context.Context, q *domain.Quiz) error
	DeleteQuiz(ctx context.Context, id string) error
}

type Config struct {
	Repository Repository
	Codes      joincode.Generator
	// CodeLength defaults to joincode.DefaultLength.
	CodeLength int
	// CodeRetries is how many times a colliding join code is regenerated. Negative disables retries.
	CodeRetries int
	Now         func() time.Time
}

type Service struct {
	repo        Repository
	codes       joincode.Generator
	codeLength  int
	codeRetries int
	now         func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		repo:        c.Repository,
		codes:       c.Codes,
		codeLength:  c.CodeLength,
		codeRetries: c.CodeRetries,
		now:         c.Now,
	}

	if s.codeLength <= 0 {
		s.codeLength = joincode.DefaultLength
	}
	if s.codeRetries == 0 {
		s.codeRetries = defaultCodeRetries
	}
	if s.codeRetries < 0 {
		s.codeRetries = 0
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}

	return s
}

// CodeLength is the length of the join codes this service generates.
func (s *Service) CodeLength() int {
	return s.codeLength
}

type CreateQuizRequest struct {
	Title       string
	Description string
	TeacherID   string
	IsPublic    bool
	Questions   []domain.Question
}

// CreateQuiz validates and stores a new quiz under a freshly generated join code.
func (s *Service) CreateQuiz(ctx context.Context, req CreateQuizRequest) (*domain.Quiz, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate quiz ID: %w", err)
	}

	now := s.now()
	q := &domain.Quiz{
		ID:          id.String(),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		TeacherID:   req.TeacherID,
		Code:        s.codes.Generate(s.codeLength),
		IsPublic:    req.IsPublic,
		Questions:   prepareQuestions(req.Questions),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := q.Validate(); err != nil {
		return nil, err
	}

	if err := s.storeWithFreshCode(ctx, q, s.repo.CreateQuiz); err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}

	slog.InfoContext(ctx, "quiz: created", "quiz_id", q.ID, "code", q.Code, "questions", q.QuestionCount())
	return q, nil
}

// storeWithFreshCode calls store and regenerates the join code while the store reports a collision.
func (s *Service) storeWithFreshCode(ctx context.Context, q *domain.Quiz, store func(context.Context, *domain.Quiz) error) error {
	for attempt := 0; ; attempt++ {
		err := store(ctx, q)
		if err == nil {
			return nil
		}

		if !errors.Is(err, errors.CodeAlreadyExists) || attempt >= s.codeRetries {
			return err
		}

		slog.WarnContext(ctx, "quiz: join code collision, regenerating",
			"quiz_id", q.ID,
			"code", q.Code,
			"attempt", attempt+1,
		)
		q.Code = s.codes.Generate(s.codeLength)
	}
}

func (s *Service) GetQuiz(ctx context.Context, id string) (*domain.Quiz, error) {
	if id == "" {
		return nil, errors.InvalidArgument("quiz id is required")
	}

	return s.repo.GetQuiz(ctx, id)
}

// GetQuizByCode resolves a join code. Codes are normalized first, so lookups are case and whitespace insensitive.
func (s *Service) GetQuizByCode(ctx context.Context, code string) (*domain.Quiz, error) {
	code = joincode.Normalize(code)
	if code == "" {
		return nil, errors.InvalidArgument("quiz code is required")
	}

	qs, err := s.repo.FindQuizzesByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("find quiz by code: %w", err)
	}

	if len(qs) == 0 {
		return nil, errors.NotFound("quiz not found with the provided code")
	}

	if len(qs) > 1 {
		slog.WarnContext(ctx, "quiz: multiple quizzes found with the same code",
			"code", code,
			"count", len(qs),
			"using", qs[0].ID,
		)
	}

	return &qs[0], nil
}

func (s *Service) ListTeacherQuizzes(ctx context.Context, teacherID string) ([]domain.Quiz, error) {
	if teacherID == "" {
		return nil, errors.InvalidArgument("teacher id is required")
	}

	return s.repo.ListQuizzesByTeacher(ctx, teacherID)
}

func (s *Service) ListPublicQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	return s.repo.ListPublicQuizzes(ctx)
}

type UpdateQuizRequest struct {
	ID          string
	TeacherID   string
	Title       string
	Description string
	IsPublic    bool
	Questions   []domain.Question
}

// UpdateQuiz replaces the editable fields of a quiz. The join code and creation time are kept.
func (s *Service) UpdateQuiz(ctx context.Context, req UpdateQuizRequest) (*domain.Quiz, error) {
	q, err := s.getOwned(ctx, req.ID, req.TeacherID)
	if err != nil {
		return nil, err
	}

	q.Title = strings.TrimSpace(req.Title)
	q.Description = strings.TrimSpace(req.Description)
	q.IsPublic = req.IsPublic
	q.Questions = prepareQuestions(req.Questions)
	q.UpdatedAt = s.now()

	if err := q.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateQuiz(ctx, q); err != nil {
		return nil, fmt.Errorf("update quiz: %w", err)
	}

	return q, nil
}

func (s *Service) DeleteQuiz(ctx context.Context, id, teacherID string) error {
	if _, err := s.getOwned(ctx, id, teacherID); err != nil {
		return err
	}

	if err := s.repo.DeleteQuiz(ctx, id); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}

	slog.InfoContext(ctx, "quiz: deleted", "quiz_id", id)
	return nil
}

// RegenerateCode assigns a new join code to the quiz. Students holding the old code can no longer join.
func (s *Service) RegenerateCode(ctx context.Context, id, teacherID string) (*domain.Quiz, error) {
	q, err := s.getOwned(ctx, id, teacherID)
	if err != nil {
		return nil, err
	}

	q.Code = s.codes.Generate(s.codeLength)
	q.UpdatedAt = s.now()

	if err := s.storeWithFreshCode(ctx, q, s.repo.UpdateQuiz); err != nil {
		return nil, fmt.Errorf("regenerate code: %w", err)
	}

	return q, nil
}

func (s *Service) getOwned(ctx context.Context, id, teacherID string) (*domain.Quiz, error) {
	q, err := s.GetQuiz(ctx, id)
	if err != nil {
		return nil, err
	}

	if !q.OwnedBy(teacherID) {
		return nil, errors.PermissionDenied("you do not have permission to modify this quiz")
	}

	return q, nil
}

// prepareQuestions fills in question ids and default time limits left out by the client.
func prepareQuestions(qs []domain.Question) []domain.Question {
	out := make([]domain.Question, 0, len(qs))
	for _, q := range qs {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if q.TimeLimit == 0 {
			q.TimeLimit = domain.DefaultTimeLimit
		}
		q.Options = append([]domain.Option(nil), q.Options...)
		out = append(out, q)
	}
	return out
}
