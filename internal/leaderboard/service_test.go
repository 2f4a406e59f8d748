package leaderboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
	"github.com/victornm/quizroom/internal/event"
	"github.com/victornm/quizroom/internal/leaderboard"
)

func TestService_UpdateLeaderboard(t *testing.T) {
	s, _ := makeService(t)

	err := s.UpdateLeaderboard(context.Background(), domain.EventScoreUpdated{
		Score: domain.Score{
			SessionID:  "s1",
			StudentID:  "stu-1",
			TotalScore: 2,
			UpdateTime: time.Now(),
		},
	})
	require.NoError(t, err)

	resp, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{
		SessionID: "s1",
	})
	require.NoError(t, err)

	want := &domain.Leaderboard{
		SessionID: "s1",
		Entries: []domain.LeaderboardEntry{
			{StudentID: "stu-1", Score: 2},
		},
	}
	require.Equal(t, want, resp)
}

func TestService_UpdateLeaderboard_StaleTotal(t *testing.T) {
	ctx := context.Background()
	s, _ := makeService(t)

	for _, total := range []int{2, 1} {
		require.NoError(t, s.UpdateLeaderboard(ctx, domain.EventScoreUpdated{
			Score: domain.Score{SessionID: "s1", StudentID: "stu-1", TotalScore: total, UpdateTime: time.Now()},
		}))
	}

	resp, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, []domain.LeaderboardEntry{{StudentID: "stu-1", Score: 2}}, resp.Entries,
		"an event handled late must not lower the score")
}

func TestService_GetLeaderboard_NotFound(t *testing.T) {
	s, _ := makeService(t)

	_, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{SessionID: "missing"})
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestService_AddParticipant(t *testing.T) {
	ctx := context.Background()
	s, _ := makeService(t)

	require.NoError(t, s.UpdateLeaderboard(ctx, domain.EventScoreUpdated{
		Score: domain.Score{SessionID: "s1", StudentID: "stu-1", TotalScore: 3, UpdateTime: time.Now()},
	}))

	for _, id := range []string{"stu-1", "stu-2"} {
		require.NoError(t, s.AddParticipant(ctx, domain.EventParticipantJoined{
			Participant: domain.Participant{SessionID: "s1", StudentID: id, JoinedAt: time.Now()},
		}))
	}

	resp, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, []domain.LeaderboardEntry{
		{StudentID: "stu-1", Score: 3},
		{StudentID: "stu-2", Score: 0},
	}, resp.Entries, "joining must not reset an existing score")
}

func TestService_CloseLeaderboard(t *testing.T) {
	ctx := context.Background()
	s, rs := makeService(t, withTTL(time.Hour))

	require.NoError(t, s.UpdateLeaderboard(ctx, domain.EventScoreUpdated{
		Score: domain.Score{SessionID: "s1", StudentID: "stu-1", TotalScore: 1, UpdateTime: time.Now()},
	}))

	require.NoError(t, s.CloseLeaderboard(ctx, domain.EventSessionEnded{
		Session: domain.Session{ID: "s1", Status: domain.SessionStatusCompleted},
	}))

	assert.Equal(t, time.Hour, rs.TTL("lb:s1:leaderboard"))
	assert.False(t, rs.Exists("lb:s1:time"))

	rs.FastForward(2 * time.Hour)
	_, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{SessionID: "s1"})
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestService_CloseLeaderboard_PublishesFinalStandings(t *testing.T) {
	ctx := context.Background()
	eb := event.NewBus()

	var (
		mu        sync.Mutex
		published []domain.Leaderboard
	)
	eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		mu.Lock()
		published = append(published, e.(domain.EventLeaderboardUpdated).Leaderboard)
		mu.Unlock()
		return nil
	})

	s, _ := makeService(t, withEventBus(eb))

	require.NoError(t, s.UpdateLeaderboard(ctx, domain.EventScoreUpdated{
		Score: domain.Score{SessionID: "s1", StudentID: "stu-1", TotalScore: 1, UpdateTime: time.Now()},
	}))
	require.NoError(t, s.UpdateLeaderboard(ctx, domain.EventScoreUpdated{
		Score: domain.Score{SessionID: "s1", StudentID: "stu-2", TotalScore: 3, UpdateTime: time.Now()},
	}))
	require.NoError(t, s.CloseLeaderboard(ctx, domain.EventSessionEnded{
		Session: domain.Session{ID: "s1", Status: domain.SessionStatusCompleted},
	}))
	require.NoError(t, s.CloseLeaderboard(ctx, domain.EventSessionEnded{
		Session: domain.Session{ID: "empty", Status: domain.SessionStatusCancelled},
	}), "a session without a leaderboard closes quietly")

	s.Stop()
	eb.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, published)
	assert.Contains(t, published, domain.Leaderboard{
		SessionID: "s1",
		Entries: []domain.LeaderboardEntry{
			{StudentID: "stu-2", Score: 3},
			{StudentID: "stu-1", Score: 1},
		},
	}, "final standings must be published when the session ends")
}

func TestServer_PublishLeaderboardUpdated(t *testing.T) {
	type (
		inputs struct {
			receivedEvents []domain.EventScoreUpdated
		}

		outputs struct {
			publishedEvents []domain.EventLeaderboardUpdated
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should publish correct event leaderboard.updated after receiving score.updated": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventScoreUpdated{
						{
							Score: domain.Score{
								SessionID:  "s1",
								StudentID:  "stu-1",
								TotalScore: 1,
								UpdateTime: time.Now(),
							},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
				require.Equal(t, domain.Leaderboard{
					SessionID: "s1",
					Entries: []domain.LeaderboardEntry{
						{StudentID: "stu-1", Score: 1},
					},
				}, out.publishedEvents[0].Leaderboard)
			},
		},

		"should publish 2 events leaderboard.updated after receiving events score.updated for 2 different sessions": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventScoreUpdated{
						{
							Score: domain.Score{
								SessionID:  "s1",
								StudentID:  "stu-1",
								TotalScore: 1,
								UpdateTime: time.Now(),
							},
						},
						{
							Score: domain.Score{
								SessionID:  "s2",
								StudentID:  "stu-2",
								TotalScore: 2,
								UpdateTime: time.Now(),
							},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 2, "should receive 2 leaderboard updated event")
			},
		},

		"should publish 1 event leaderboard.updated after receiving events score.updated for the same session within the publish interval": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventScoreUpdated{
						{
							Score: domain.Score{
								SessionID:  "s1",
								StudentID:  "stu-1",
								TotalScore: 1,
								UpdateTime: time.Now(),
							},
						},
						{
							Score: domain.Score{
								SessionID:  "s1",
								StudentID:  "stu-2",
								TotalScore: 2,
								UpdateTime: time.Now(),
							},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 2, "the throttled change should be published once the interval is over")
				require.Equal(t, []domain.LeaderboardEntry{
					{StudentID: "stu-2", Score: 2},
					{StudentID: "stu-1", Score: 1},
				}, out.publishedEvents[1].Leaderboard.Entries)
			},
		},

		"should publish a single trailing event for a burst of score.updated within the publish interval": {
			arrange: func() inputs {
				var in inputs
				for i := 1; i <= 5; i++ {
					in.receivedEvents = append(in.receivedEvents, domain.EventScoreUpdated{
						Score: domain.Score{
							SessionID:  "s1",
							StudentID:  "stu-1",
							TotalScore: i,
							UpdateTime: time.Now(),
						},
					})
				}
				return in
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 2)
				assert.Equal(t, []domain.LeaderboardEntry{{StudentID: "stu-1", Score: 1}}, out.publishedEvents[0].Leaderboard.Entries)
				assert.Equal(t, []domain.LeaderboardEntry{{StudentID: "stu-1", Score: 5}}, out.publishedEvents[1].Leaderboard.Entries)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in, out := tt.arrange(), outputs{}

			eb := event.NewBus()

			var mu sync.Mutex
			eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
				mu.Lock()
				out.publishedEvents = append(out.publishedEvents, e.(domain.EventLeaderboardUpdated))
				mu.Unlock()
				return nil
			})

			s, _ := makeService(t,
				withEventBus(eb),
			)

			for _, e := range in.receivedEvents {
				err := s.UpdateLeaderboard(context.Background(), e)
				require.NoError(t, err)
			}

			s.Stop()
			eb.Stop()

			tt.assert(t, out)
		})
	}
}

func TestService_SubscribesToSessionEvents(t *testing.T) {
	ctx := context.Background()
	eb := event.NewBus()
	s, _ := makeService(t, withEventBus(eb))

	eb.Publish(ctx, domain.EventParticipantJoined{
		Participant: domain.Participant{SessionID: "s1", StudentID: "stu-1", JoinedAt: time.Now()},
	})
	eb.Stop()

	eb.Publish(ctx, domain.EventScoreUpdated{
		Score: domain.Score{SessionID: "s1", StudentID: "stu-1", TotalScore: 4, UpdateTime: time.Now()},
	})
	eb.Stop()

	resp, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, []domain.LeaderboardEntry{{StudentID: "stu-1", Score: 4}}, resp.Entries)
}

func makeService(t *testing.T, opts ...options) (*leaderboard.Service, *miniredis.Miniredis) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := leaderboard.Config{
		EventBus: event.NewBus(),
		Redis:    rc,
		Prefix:   "lb",
	}

	for _, opt := range opts {
		opt(&c)
	}

	s := leaderboard.NewService(c)
	t.Cleanup(s.Stop)

	return s, rs
}

type options func(c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *leaderboard.Config) {
		c.EventBus = eb
	}
}

func withTTL(d time.Duration) options {
	return func(c *leaderboard.Config) {
		c.TTL = d
	}
}
