package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
	"github.com/victornm/quizroom/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond
	defaultTTL      = 24 * time.Hour
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
	// TTL is how long the leaderboard of an ended session is kept.
	TTL time.Duration
}

// Service mirrors session scores into a Redis sorted set per session and announces changes.
// The relational store stays the source of truth; the leaderboard is a read model.
type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration

	// pending tracks trailing publishes that have not fired yet.
	pending sync.WaitGroup
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    c.TTL,
	}

	if s.ttl <= 0 {
		s.ttl = defaultTTL
	}

	s.eb.Subscribe(domain.EventNameScoreUpdated, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventScoreUpdated))
	})

	s.eb.Subscribe(domain.EventNameParticipantJoined, func(ctx context.Context, e event.Event) error {
		return s.AddParticipant(ctx, e.(domain.EventParticipantJoined))
	})

	s.eb.Subscribe(domain.EventNameSessionEnded, func(ctx context.Context, e event.Event) error {
		return s.CloseLeaderboard(ctx, e.(domain.EventSessionEnded))
	})

	return s
}

type GetLeaderboardRequest struct {
	SessionID string
}

// GetLeaderboard returns the leaderboard for a session, including all students and their scores.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.getLeaderboardKey(req.SessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.NotFound("leaderboard not found: session=%s", req.SessionID)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			StudentID: z.Member.(string),
			Score:     z.Score,
		})
	}

	return &domain.Leaderboard{
		SessionID: req.SessionID,
		Entries:   entries,
	}, nil
}

// UpdateLeaderboard raises the student's score to the total carried by the event.
// Totals only grow, so a stale event handled late never lowers the score.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventScoreUpdated) error {
	sc := e.Score

	if err := s.redis.ZAddArgs(ctx, s.getLeaderboardKey(sc.SessionID), redis.ZAddArgs{
		GT: true,
		Members: []redis.Z{{
			Score:  float64(sc.TotalScore),
			Member: sc.StudentID,
		}},
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, sc.SessionID, sc.UpdateTime)
}

// AddParticipant puts a newly joined student on the leaderboard with a zero score.
// A score that is already there is never reset.
func (s *Service) AddParticipant(ctx context.Context, e domain.EventParticipantJoined) error {
	p := e.Participant

	if err := s.redis.ZAddNX(ctx, s.getLeaderboardKey(p.SessionID), redis.Z{
		Score:  float64(p.Score),
		Member: p.StudentID,
	}).Err(); err != nil {
		return fmt.Errorf("add participant to leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, p.SessionID, p.JoinedAt)
}

// CloseLeaderboard keeps the final standings of an ended session around for TTL and publishes them.
func (s *Service) CloseLeaderboard(ctx context.Context, e domain.EventSessionEnded) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Expire(ctx, s.getLeaderboardKey(e.Session.ID), s.ttl)
		pipe.Del(ctx, s.getLeaderboardTimeKey(e.Session.ID), s.getLeaderboardPendingKey(e.Session.ID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("close leaderboard: %w", err)
	}

	// A session nobody joined has no leaderboard.
	if err := s.publishLeaderboard(ctx, e.Session.ID); err != nil && !errors.Is(err, errors.CodeNotFound) {
		return err
	}

	return nil
}

// Stop waits for scheduled publishes to fire.
func (s *Service) Stop() {
	s.pending.Wait()
}

// schedulePublishLeaderboard publishes the leaderboard at most once per interval.
// Many scores change in a short time during a live session, so this reduces the number of published events.
// Changes throttled away are published by a single trailing publish at the end of the interval.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, sessionID string, at time.Time) error {
	// SetNX keeps multiple instances of the service from publishing the same change.
	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(sessionID), at.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return s.scheduleTrailingPublish(ctx, sessionID)
	}

	return s.publishLeaderboard(ctx, sessionID)
}

func (s *Service) scheduleTrailingPublish(ctx context.Context, sessionID string) error {
	key := s.getLeaderboardPendingKey(sessionID)

	ok, err := s.redis.SetNX(ctx, key, 1, 2*publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx pending: %w", err)
	}

	if !ok {
		return nil
	}

	s.pending.Add(1)
	time.AfterFunc(publishInterval, func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		// Deleted before reading so a change made while publishing schedules another publish.
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			slog.ErrorContext(ctx, "leaderboard: clear pending publish failed", "session_id", sessionID, "error", err)
		}

		if err := s.publishLeaderboard(ctx, sessionID); err != nil {
			slog.ErrorContext(ctx, "leaderboard: trailing publish failed", "session_id", sessionID, "error", err)
		}
	})

	return nil
}

func (s *Service) publishLeaderboard(ctx context.Context, sessionID string) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{
		SessionID: sessionID,
	})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: session=%s: %w", sessionID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

func (s *Service) getLeaderboardKey(session string) string {
	return fmt.Sprintf("%s:%s:leaderboard", s.prefix, session)
}

func (s *Service) getLeaderboardTimeKey(session string) string {
	return fmt.Sprintf("%s:%s:time", s.prefix, session)
}

func (s *Service) getLeaderboardPendingKey(session string) string {
	return fmt.Sprintf("%s:%s:pending", s.prefix, session)
}
