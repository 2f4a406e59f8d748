package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quizroom/internal/auth"
	"github.com/victornm/quizroom/internal/errors"
)

func (a *API) registerRoutes(r gin.IRouter) {
	v1 := r.Group("/api/v1", auth.Middleware(a.authn))

	teacher := auth.RequireRole(auth.RoleTeacher)
	student := auth.RequireRole(auth.RoleStudent)

	quizzes := v1.Group("/quizzes")
	quizzes.POST("", teacher, serve(a.CreateQuiz, http.StatusCreated, fillBody[CreateQuizRequest]))
	quizzes.GET("", teacher, serve(a.ListMyQuizzes, http.StatusOK, nil))
	quizzes.GET("/public", serve(a.ListPublicQuizzes, http.StatusOK, nil))
	quizzes.GET("/code/:code", serve(a.GetQuizByCode, http.StatusOK, fillCode))
	quizzes.GET("/:id", serve(a.GetQuiz, http.StatusOK, fillQuiz))
	quizzes.PUT("/:id", teacher, serve(a.UpdateQuiz, http.StatusOK, fillUpdateQuiz))
	quizzes.DELETE("/:id", teacher, serve(a.DeleteQuiz, http.StatusOK, fillQuiz))
	quizzes.POST("/:id/code", teacher, serve(a.RegenerateCode, http.StatusOK, fillQuiz))
	quizzes.POST("/:id/sessions", teacher, serve(a.StartSession, http.StatusOK, fillQuiz))
	quizzes.GET("/:id/sessions", teacher, serve(a.ListQuizSessions, http.StatusOK, fillQuiz))
	quizzes.POST("/:id/join", student, serve(a.JoinSession, http.StatusOK, fillQuiz))

	v1.POST("/join", student, serve(a.JoinByCode, http.StatusOK, fillBody[CodeRequest]))

	sessions := v1.Group("/sessions")
	sessions.GET("", teacher, serve(a.ListMySessions, http.StatusOK, fillQuery[ListSessionsRequest]))
	sessions.GET("/:id", serve(a.GetSession, http.StatusOK, fillSession))
	sessions.POST("/:id/complete", teacher, serve(a.CompleteSession, http.StatusOK, fillSession))
	sessions.POST("/:id/cancel", teacher, serve(a.CancelSession, http.StatusOK, fillSession))
	sessions.GET("/:id/participants", serve(a.GetSessionParticipants, http.StatusOK, fillSession))
	sessions.POST("/:id/answers", student, serve(a.SubmitAnswer, http.StatusOK, fillAnswer))
	sessions.GET("/:id/results", teacher, serve(a.GetResults, http.StatusOK, fillSession))
	sessions.GET("/:id/leaderboard", serve(a.GetLeaderboard, http.StatusOK, fillSession))
}

// serve adapts an operation to gin. fill reads path, query and body into the request.
func serve[Req, Resp any](op func(context.Context, *Req) (Resp, error), status int, fill func(*gin.Context, *Req) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := new(Req)
		if fill != nil {
			if err := fill(c, req); err != nil {
				render(c, status, nil, err)
				return
			}
		}

		resp, err := op(c.Request.Context(), req)
		render(c, status, resp, err)
	}
}

func render(c *gin.Context, status int, data any, err error) {
	res, e := result(c.Request.Context(), data, err)
	if e != nil {
		status = e.HTTPStatusCode()
	}

	c.JSON(status, res)
}

func fillBody[Req any](c *gin.Context, req *Req) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return errors.InvalidArgument("invalid request body: %v", err)
	}
	return nil
}

func fillQuery[Req any](c *gin.Context, req *Req) error {
	if err := c.ShouldBindQuery(req); err != nil {
		return errors.InvalidArgument("invalid query: %v", err)
	}
	return nil
}

func fillQuiz(c *gin.Context, req *QuizRequest) error {
	req.QuizID = c.Param("id")
	return nil
}

func fillCode(c *gin.Context, req *CodeRequest) error {
	req.Code = c.Param("code")
	return nil
}

func fillSession(c *gin.Context, req *SessionRequest) error {
	req.SessionID = c.Param("id")
	return nil
}

func fillUpdateQuiz(c *gin.Context, req *UpdateQuizRequest) error {
	if err := fillBody(c, req); err != nil {
		return err
	}
	req.QuizID = c.Param("id")
	return nil
}

func fillAnswer(c *gin.Context, req *SubmitAnswerRequest) error {
	if err := fillBody(c, req); err != nil {
		return err
	}
	req.SessionID = c.Param("id")
	return nil
}
