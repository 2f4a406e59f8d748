package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	grpcauth "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/quizroom/internal/api"
	"github.com/victornm/quizroom/internal/auth"
	"github.com/victornm/quizroom/internal/event"
	"github.com/victornm/quizroom/internal/leaderboard"
	"github.com/victornm/quizroom/internal/quiz"
	"github.com/victornm/quizroom/internal/session"
	"github.com/victornm/quizroom/internal/store/postgres"
	"github.com/victornm/quizroom/internal/store/sqlite"
	"github.com/victornm/quizroom/internal/telemetry"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

type Config struct {
	HTTP struct {
		Port int32
		// CORSOrigins lists the browser origins allowed to call the HTTP API. Empty allows none.
		CORSOrigins []string
	}

	GRPC struct {
		Port int32
	}

	Store struct {
		Driver string

		Postgres struct {
			Addr string
			User string
			Pass string
			Name string
		}

		SQLite struct {
			Path string
		}
	}

	Redis struct {
		Leaderboard struct {
			Addrs  []string
			Pass   string
			Prefix string
			TTL    time.Duration
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Auth struct {
		Secret string
		Issuer string
		TTL    time.Duration
	}

	Quiz struct {
		CodeLength  int
		CodeRetries int
	}
}

// DefaultConfig returns the values used for anything the config file and environment leave out.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 8081
	c.Store.Driver = StoreDriverSQLite
	c.Store.SQLite.Path = "quizroom.db"
	c.Redis.Leaderboard.Addrs = []string{"localhost:6379"}
	c.Redis.Leaderboard.Prefix = "quizroom:leaderboard"
	c.Redis.Leaderboard.TTL = 24 * time.Hour
	c.Redis.Pubsub.Addrs = []string{"localhost:6379"}
	c.Redis.Pubsub.Prefix = "quizroom"
	c.Auth.Issuer = "quizroom"
	c.Auth.TTL = 24 * time.Hour
	c.Quiz.CodeRetries = 3
	return c
}

// store is what both the PostgreSQL and the SQLite backend provide.
type store interface {
	quiz.Repository
	session.Repository
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		store      store
		closeStore func()
	}

	service struct {
		auth        *auth.Authenticator
		quiz        *quiz.Service
		session     *session.Service
		leaderboard *leaderboard.Service
	}

	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
}

func Init(c Config) (*Server, error) {
	if c.Auth.Secret == "" {
		return nil, fmt.Errorf("server: auth secret is required")
	}

	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initStore(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.leaderboard, err = connect(s.c.Redis.Leaderboard.Addrs, s.c.Redis.Leaderboard.Pass)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initStore() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch s.c.Store.Driver {
	case StoreDriverPostgres:
		cc, err := pgxpool.ParseConfig(postgresDSN(s.c))
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}

		if err := db.Ping(ctx); err != nil {
			db.Close()
			return fmt.Errorf("postgres: %w", err)
		}

		st := postgres.New(db)
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return err
		}

		s.infra.store, s.infra.closeStore = st, st.Close

	case StoreDriverSQLite:
		st, err := sqlite.Open(ctx, s.c.Store.SQLite.Path)
		if err != nil {
			return err
		}

		s.infra.store = st
		s.infra.closeStore = func() {
			if err := st.Close(); err != nil {
				slog.Error("server: close sqlite failed", "error", err)
			}
		}

	default:
		return fmt.Errorf("unknown driver %q", s.c.Store.Driver)
	}

	slog.Info("server: store ready", "driver", s.c.Store.Driver)
	return nil
}

// postgresDSN escapes the credentials so passwords may contain URL delimiters such as '@' or '/'.
func postgresDSN(c Config) string {
	pg := c.Store.Postgres
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(pg.User, pg.Pass),
		Host:   pg.Addr,
		Path:   "/" + pg.Name,
	}
	return u.String()
}

func (s *Server) initService() {
	s.service.auth = auth.NewAuthenticator(auth.Config{
		Secret: s.c.Auth.Secret,
		Issuer: s.c.Auth.Issuer,
		TTL:    s.c.Auth.TTL,
	})

	s.service.quiz = quiz.NewService(quiz.Config{
		Repository:  s.infra.store,
		CodeLength:  s.c.Quiz.CodeLength,
		CodeRetries: s.c.Quiz.CodeRetries,
	})

	s.service.session = session.NewService(session.Config{
		Repository: s.infra.store,
		Quizzes:    s.service.quiz,
		EventBus:   s.eb,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
		TTL:      s.c.Redis.Leaderboard.TTL,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.Use(gin.Recovery(), telemetry.GinMiddleware())
	if len(s.c.HTTP.CORSOrigins) > 0 {
		e.Use(cors.New(cors.Config{
			AllowOrigins: s.c.HTTP.CORSOrigins,
			AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}))
	}
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	e.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	pprof.Register(e, "/debug/pprof")

	authn := selector.UnaryServerInterceptor(
		grpcauth.UnaryServerInterceptor(auth.GRPCAuthFunc(s.service.auth)),
		selector.MatchFunc(func(_ context.Context, c interceptors.CallMeta) bool {
			return c.Service != healthpb.Health_ServiceDesc.ServiceName
		}),
	)
	s.grpc = grpc.NewServer(grpc.ChainUnaryInterceptor(append(telemetry.GRPCServerInterceptors(), authn)...))

	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	api.New(api.Config{
		GRPC:         s.grpc,
		HTTP:         e,
		Auth:         s.service.auth,
		EventBus:     s.eb,
		Quiz:         s.service.quiz,
		Session:      s.service.session,
		Leaderboard:  s.service.leaderboard,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	s.health.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	// Leaderboard publishes scheduled by handlers go back through the bus, so it is drained twice.
	s.eb.Stop()
	s.service.leaderboard.Stop()
	s.eb.Stop()

	s.infra.closeStore()
	for _, r := range []redis.UniversalClient{s.infra.redis.leaderboard, s.infra.redis.pubsub} {
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
