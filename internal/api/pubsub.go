package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizroom/internal/domain"
)

const maxConcurrent = 100

type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PublishLeaderboardUpdated pushes the new standings to every student on the leaderboard.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	data := toLeaderboardDTO(e.Leaderboard)

	students := make([]string, 0, len(data.Entries))
	for _, entry := range data.Entries {
		students = append(students, entry.StudentID)
	}

	return a.notifyStudents(ctx, students, e.Name(), data)
}

// PublishSessionEnded tells every participant that the session is over.
func (a *API) PublishSessionEnded(ctx context.Context, e domain.EventSessionEnded) error {
	students, err := a.qss.GetSessionParticipants(ctx, e.Session.ID)
	if err != nil {
		return fmt.Errorf("pubsub: list participants: %w", err)
	}

	return a.notifyStudents(ctx, students, e.Name(), e.Session.ToDTO())
}

func (a *API) notifyStudents(ctx context.Context, students []string, event string, data any) error {
	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, student := range students {
		eg.Go(func() error {
			return a.publishNotification(ctx, student, event, data)
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, student, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, a.studentChannel(student), b).Err()
}

// studentChannel is the Redis channel a student's client subscribes to.
func (a *API) studentChannel(student string) string {
	return fmt.Sprintf("%s:user:%s", a.prefix, student)
}
