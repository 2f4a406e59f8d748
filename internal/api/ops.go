package api

import (
	"context"

	"github.com/victornm/quizroom/internal/auth"
	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
	"github.com/victornm/quizroom/internal/joincode"
	"github.com/victornm/quizroom/internal/leaderboard"
	"github.com/victornm/quizroom/internal/quiz"
	"github.com/victornm/quizroom/internal/session"
)

// Operations is the transport independent surface of the API. The caller's identity is
// taken from the context, never from the request.
type Operations interface {
	CreateQuiz(ctx context.Context, req *CreateQuizRequest) (*domain.QuizDTO, error)
	GetQuiz(ctx context.Context, req *QuizRequest) (*domain.QuizDTO, error)
	GetQuizByCode(ctx context.Context, req *CodeRequest) (*domain.QuizDTO, error)
	ListMyQuizzes(ctx context.Context, req *Empty) ([]domain.QuizDTO, error)
	ListPublicQuizzes(ctx context.Context, req *Empty) ([]domain.QuizDTO, error)
	UpdateQuiz(ctx context.Context, req *UpdateQuizRequest) (*domain.QuizDTO, error)
	DeleteQuiz(ctx context.Context, req *QuizRequest) (*Empty, error)
	RegenerateCode(ctx context.Context, req *QuizRequest) (*domain.QuizDTO, error)

	StartSession(ctx context.Context, req *QuizRequest) (*domain.SessionDTO, error)
	ListQuizSessions(ctx context.Context, req *QuizRequest) ([]domain.SessionDTO, error)
	ListMySessions(ctx context.Context, req *ListSessionsRequest) ([]domain.SessionDTO, error)
	JoinSession(ctx context.Context, req *QuizRequest) (*JoinResponse, error)
	JoinByCode(ctx context.Context, req *CodeRequest) (*JoinResponse, error)
	GetSession(ctx context.Context, req *SessionRequest) (*domain.SessionDTO, error)
	CompleteSession(ctx context.Context, req *SessionRequest) (*domain.SessionDTO, error)
	CancelSession(ctx context.Context, req *SessionRequest) (*domain.SessionDTO, error)
	GetSessionParticipants(ctx context.Context, req *SessionRequest) (*ParticipantsResponse, error)
	SubmitAnswer(ctx context.Context, req *SubmitAnswerRequest) (*SubmitAnswerResponse, error)
	GetResults(ctx context.Context, req *SessionRequest) (*ResultsDTO, error)
	GetLeaderboard(ctx context.Context, req *SessionRequest) (*LeaderboardDTO, error)
}

var _ Operations = (*API)(nil)

type (
	Empty struct{}

	QuizRequest struct {
		QuizID string `json:"quizId"`
	}

	CodeRequest struct {
		Code string `json:"code" binding:"required"`
	}

	SessionRequest struct {
		SessionID string `json:"sessionId"`
	}

	ListSessionsRequest struct {
		Status domain.SessionStatus `json:"status" form:"status"`
	}

	CreateQuizRequest struct {
		Title       string            `json:"title" binding:"required"`
		Description string            `json:"description"`
		IsPublic    bool              `json:"isPublic"`
		Questions   []domain.Question `json:"questions" binding:"required"`
	}

	UpdateQuizRequest struct {
		QuizID      string            `json:"quizId"`
		Title       string            `json:"title" binding:"required"`
		Description string            `json:"description"`
		IsPublic    bool              `json:"isPublic"`
		Questions   []domain.Question `json:"questions" binding:"required"`
	}

	SubmitAnswerRequest struct {
		SessionID  string `json:"sessionId"`
		QuestionID string `json:"questionId" binding:"required"`
		AnswerID   string `json:"answerId" binding:"required"`
	}

	JoinResponse struct {
		SessionID string          `json:"sessionId"`
		Quiz      *domain.QuizDTO `json:"quiz,omitempty"`
	}

	ParticipantsResponse struct {
		SessionID  string   `json:"sessionId"`
		StudentIDs []string `json:"studentIds"`
	}

	SubmitAnswerResponse struct {
		IsCorrect  bool `json:"isCorrect"`
		TotalScore int  `json:"totalScore"`
	}
)

func (a *API) CreateQuiz(ctx context.Context, req *CreateQuizRequest) (*domain.QuizDTO, error) {
	id, err := auth.Require(ctx, auth.RoleTeacher)
	if err != nil {
		return nil, err
	}

	q, err := a.qs.CreateQuiz(ctx, quiz.CreateQuizRequest{
		Title:       req.Title,
		Description: req.Description,
		TeacherID:   id.UserID,
		IsPublic:    req.IsPublic,
		Questions:   req.Questions,
	})
	if err != nil {
		return nil, err
	}

	dto := q.ToDTO()
	return &dto, nil
}

// GetQuiz shows the full quiz to its owner and the public projection to everyone else.
func (a *API) GetQuiz(ctx context.Context, req *QuizRequest) (*domain.QuizDTO, error) {
	id, err := auth.Require(ctx)
	if err != nil {
		return nil, err
	}

	q, err := a.qs.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return nil, err
	}

	return projection(q, id), nil
}

func (a *API) GetQuizByCode(ctx context.Context, req *CodeRequest) (*domain.QuizDTO, error) {
	id, err := auth.Require(ctx)
	if err != nil {
		return nil, err
	}

	if !joincode.Valid(req.Code, a.qs.CodeLength()) {
		return nil, errors.InvalidArgument("invalid quiz code: %q", req.Code)
	}

	q, err := a.qs.GetQuizByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	return projection(q, id), nil
}

func (a *API) ListMyQuizzes(ctx context.Context, _ *Empty) ([]domain.QuizDTO, error) {
	id, err := auth.Require(ctx, auth.RoleTeacher)
	if err != nil {
		return nil, err
	}

	qs, err := a.qs.ListTeacherQuizzes(ctx, id.UserID)
	if err != nil {
		return nil, err
	}

	dtos := make([]domain.QuizDTO, 0, len(qs))
	for i := range qs {
		dtos = append(dtos, qs[i].ToDTO())
	}
	return dtos, nil
}

func (a *API) ListPublicQuizzes(ctx context.Context, _ *Empty) ([]domain.QuizDTO, error) {
	if _, err := auth.Require(ctx); err != nil {
		return nil, err
	}

	qs, err := a.qs.ListPublicQuizzes(ctx)
	if err != nil {
		return nil, err
	}

	dtos := make([]domain.QuizDTO, 0, len(qs))
	for i := range qs {
		dtos = append(dtos, qs[i].ToPublicDTO())
	}
	return dtos, nil
}

func (a *API) UpdateQuiz(ctx context.Context, req *UpdateQuizRequest) (*domain.QuizDTO, error) {
	id, err := auth.Require(ctx, auth.RoleTeacher)
	if err != nil {
		return nil, err
	}

	q, err := a.qs.UpdateQuiz(ctx, quiz.UpdateQuizRequest{
		ID:          req.QuizID,
		TeacherID:   id.UserID,
		Title:       req.Title,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		Questions:   req.Questions,
	})
	if err != nil {
		return nil, err
	}

	dto := q.ToDTO()
	return &dto, nil
}

func (a *API) DeleteQuiz(ctx context.Context, req *QuizRequest) (*Empty, error) {
	id, err := auth.Require(ctx, auth.RoleTeacher)
	if err != nil {
		return nil, err
	}

	if err := a.qs.DeleteQuiz(ctx, req.QuizID, id.UserID); err != nil {
		return nil, err
	}

	return &Empty{}, nil
}

func (a *API) RegenerateCode(ctx context.Context, req *QuizRequest) (*domain.QuizDTO, error) {
	id, err := auth.Require(ctx, auth.RoleTeacher)
	if err != nil {
		return nil, err
	}

	q, err := a.qs.RegenerateCode(ctx, req.QuizID, id.UserID)
	if err != nil {
		return nil, err
	}

	dto := q.ToDTO()
	return &dto, nil
}

func (a *API) StartSession(ctx context.Context, req *QuizRequest) (*domain.SessionDTO, error) {
	id, err := auth.Require(ctx, auth.RoleTeacher)
	if err != nil {
		return nil, err
	}

	ss, err := a.qss.StartSession(ctx, session.StartSessionRequest{
		QuizID:    req.QuizID,
		TeacherID: id.UserID,
	})
	if err != nil {
		return nil, err
	}

	dto := ss.ToDTO()
	return &dto, nil
}

func (a *API) ListQuizSessions(ctx context.Context, req *QuizRequest) ([]domain.SessionDTO, error) {
	id, err := auth.Require(ctx, auth.RoleTeacher)
	if err != nil {
		return nil, err
	}

	sessions, err := a.qss.ListQuizSessions(ctx, req.QuizID, id.UserID)
	if err != nil {
		return nil, err
	}

	return sessionDTOs(sessions), nil
}

func (a *API) ListMySessions(ctx context.Context, req *ListSessionsRequest) ([]domain.SessionDTO, error) {
	id, err := auth.Require(ctx, auth.RoleTeacher)
	if err != nil {
		return nil, err
	}

	sessions, err := a.qss.ListTeacherSessions(ctx, id.UserID, req.Status)
	if err != nil {
		return nil, err
	}

	return sessionDTOs(sessions), nil
}

func (a *API) JoinSession(ctx context.Context, req *QuizRequest) (*JoinResponse, error) {
	id, err := auth.Require(ctx, auth.RoleStudent)
	if err != nil {
		return nil, err
	}

	sessionID, err := a.qss.JoinSession(ctx, session.JoinSessionRequest{
		QuizID:    req.QuizID,
		StudentID: id.UserID,
	})
	if err != nil {
		return nil, err
	}

	return &JoinResponse{SessionID: sessionID}, nil
}

func (a *API) JoinByCode(ctx context.Context, req *CodeRequest) (*JoinResponse, error) {
	id, err := auth.Require(ctx, auth.RoleStudent)
	if err != nil {
		return nil, err
	}

	if !joincode.Valid(req.Code, a.qs.CodeLength()) {
		return nil, errors.InvalidArgument("invalid quiz code: %q", req.Code)
	}

	res, err := a.qss.JoinByCode(ctx, session.JoinByCodeRequest{
		Code:      req.Code,
		StudentID: id.UserID,
	})
	if err != nil {
		return nil, err
	}

	dto := res.Quiz.ToPublicDTO()
	return &JoinResponse{SessionID: res.SessionID, Quiz: &dto}, nil
}

func (a *API) GetSession(ctx context.Context, req *SessionRequest) (*domain.SessionDTO, error) {
	if _, err := auth.Require(ctx); err != nil {
		return nil, err
	}

	ss, err := a.qss.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	dto := ss.ToDTO()
	return &dto, nil
}

func (a *API) CompleteSession(ctx context.Context, req *SessionRequest) (*domain.SessionDTO, error) {
	return a.endSession(ctx, req, a.qss.CompleteSession)
}

func (a *API) CancelSession(ctx context.Context, req *SessionRequest) (*domain.SessionDTO, error) {
	return a.endSession(ctx, req, a.qss.CancelSession)
}

func (a *API) endSession(
	ctx context.Context,
	req *SessionRequest,
	end func(context.Context, session.EndSessionRequest) (*domain.Session, error),
) (*domain.SessionDTO, error) {
	id, err := auth.Require(ctx, auth.RoleTeacher)
	if err != nil {
		return nil, err
	}

	ss, err := end(ctx, session.EndSessionRequest{
		SessionID: req.SessionID,
		TeacherID: id.UserID,
	})
	if err != nil {
		return nil, err
	}

	dto := ss.ToDTO()
	return &dto, nil
}

func (a *API) GetSessionParticipants(ctx context.Context, req *SessionRequest) (*ParticipantsResponse, error) {
	if _, err := auth.Require(ctx); err != nil {
		return nil, err
	}

	// Resolve the session first so an unknown id is reported instead of an empty list.
	if _, err := a.qss.GetSession(ctx, req.SessionID); err != nil {
		return nil, err
	}

	ids, err := a.qss.GetSessionParticipants(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	return &ParticipantsResponse{SessionID: req.SessionID, StudentIDs: ids}, nil
}

// SubmitAnswer grades the answer on the server. Correctness claimed by clients is never trusted.
func (a *API) SubmitAnswer(ctx context.Context, req *SubmitAnswerRequest) (*SubmitAnswerResponse, error) {
	id, err := auth.Require(ctx, auth.RoleStudent)
	if err != nil {
		return nil, err
	}

	resp, err := a.qss.AnswerQuestion(ctx, session.AnswerQuestionRequest{
		SessionID:  req.SessionID,
		StudentID:  id.UserID,
		QuestionID: req.QuestionID,
		AnswerID:   req.AnswerID,
	})
	if err != nil {
		return nil, err
	}

	return &SubmitAnswerResponse{IsCorrect: resp.IsCorrect, TotalScore: resp.TotalScore}, nil
}

func (a *API) GetResults(ctx context.Context, req *SessionRequest) (*ResultsDTO, error) {
	id, err := auth.Require(ctx, auth.RoleTeacher)
	if err != nil {
		return nil, err
	}

	res, err := a.qss.GetResults(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	if res.Session.TeacherID != id.UserID {
		return nil, errors.PermissionDenied("you do not have permission to view results of this session")
	}

	return toResultsDTO(res), nil
}

func (a *API) GetLeaderboard(ctx context.Context, req *SessionRequest) (*LeaderboardDTO, error) {
	if _, err := auth.Require(ctx); err != nil {
		return nil, err
	}

	if req.SessionID == "" {
		return nil, errors.InvalidArgument("session id is required")
	}

	l, err := a.ls.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{
		SessionID: req.SessionID,
	})
	if err != nil {
		return nil, err
	}

	dto := toLeaderboardDTO(*l)
	return &dto, nil
}

func projection(q *domain.Quiz, id *auth.Identity) *domain.QuizDTO {
	var dto domain.QuizDTO
	if q.OwnedBy(id.UserID) {
		dto = q.ToDTO()
	} else {
		dto = q.ToPublicDTO()
	}
	return &dto
}

func sessionDTOs(sessions []domain.Session) []domain.SessionDTO {
	dtos := make([]domain.SessionDTO, 0, len(sessions))
	for i := range sessions {
		dtos = append(dtos, sessions[i].ToDTO())
	}
	return dtos
}
