package api_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/victornm/quizroom/internal/api"
	"github.com/victornm/quizroom/internal/auth"
	"github.com/victornm/quizroom/internal/event"
	"github.com/victornm/quizroom/internal/leaderboard"
	"github.com/victornm/quizroom/internal/quiz"
	"github.com/victornm/quizroom/internal/session"
	"github.com/victornm/quizroom/internal/store/sqlite"
)

const pubsubPrefix = "quizroom"

type fixture struct {
	router *gin.Engine
	eb     *event.Bus
	redis  redis.UniversalClient
	authn  *auth.Authenticator
}

func setup(t *testing.T, gs *grpc.Server, opts ...func(c *quiz.Config)) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{rs.Addr()}})
	t.Cleanup(func() { _ = rc.Close() })

	eb := event.NewBus(event.WithTimeout(5 * time.Second))
	t.Cleanup(eb.Stop)

	qc := quiz.Config{Repository: store}
	for _, opt := range opts {
		opt(&qc)
	}
	quizzes := quiz.NewService(qc)
	sessions := session.NewService(session.Config{
		Repository: store,
		Quizzes:    quizzes,
		EventBus:   eb,
	})
	lb := leaderboard.NewService(leaderboard.Config{
		EventBus: eb,
		Redis:    rc,
		Prefix:   "leaderboard",
	})
	t.Cleanup(lb.Stop)
	authn := newAuthn()

	r := gin.New()
	api.New(api.Config{
		GRPC:         gs,
		HTTP:         r,
		Auth:         authn,
		EventBus:     eb,
		Quiz:         quizzes,
		Session:      sessions,
		Leaderboard:  lb,
		Redis:        rc,
		PubsubPrefix: pubsubPrefix,
	})

	return &fixture{router: r, eb: eb, redis: rc, authn: authn}
}

func newAuthn() *auth.Authenticator {
	return auth.NewAuthenticator(auth.Config{Secret: "test-secret", Issuer: "quizroom"})
}

func (f *fixture) token(t *testing.T, userID string, role auth.Role) string {
	t.Helper()

	token, err := f.authn.Issue(auth.Identity{UserID: userID, Role: role})
	require.NoError(t, err)
	return token
}
