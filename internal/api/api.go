package api

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/victornm/quizroom/internal/auth"
	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
	"github.com/victornm/quizroom/internal/event"
	"github.com/victornm/quizroom/internal/leaderboard"
	"github.com/victornm/quizroom/internal/quiz"
	"github.com/victornm/quizroom/internal/session"
)

type Config struct {
	// GRPC and HTTP are optional; the API registers itself on whichever is given.
	GRPC         *grpc.Server
	HTTP         gin.IRouter
	Auth         *auth.Authenticator
	EventBus     *event.Bus
	Quiz         *quiz.Service
	Session      *session.Service
	Leaderboard  *leaderboard.Service
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	qs  *quiz.Service
	qss *session.Service
	ls  *leaderboard.Service

	authn  *auth.Authenticator
	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		qs:     c.Quiz,
		qss:    c.Session,
		ls:     c.Leaderboard,
		authn:  c.Auth,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	if c.GRPC != nil {
		c.GRPC.RegisterService(&serviceDesc, a)
	}

	if c.HTTP != nil {
		a.registerRoutes(c.HTTP)
	}

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})
	c.EventBus.Subscribe(domain.EventNameSessionEnded, func(ctx context.Context, e event.Event) error {
		return a.PublishSessionEnded(ctx, e.(domain.EventSessionEnded))
	})

	return a
}

// result turns the outcome of an operation into the envelope every transport returns.
// Internal failures are logged here and reach the caller only as a generic message.
func result(ctx context.Context, data any, err error) (errors.Result, *errors.Error) {
	if err == nil {
		return errors.OK(data), nil
	}

	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(ctx, "api: operation failed", "error", err)
	}

	return errors.Fail(e), e
}
