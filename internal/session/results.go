package session

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/quizroom/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Results summarizes how every participant did in a session.
type Results struct {
	Session      domain.Session
	Participants []ParticipantResult
}

type ParticipantResult struct {
	StudentID string
	Score     int
	Answered  int
	Correct   int
	// Accuracy is the percentage of correct submissions, rounded to 2 places.
	Accuracy decimal.Decimal
	JoinedAt time.Time
}

// GetResults returns the participants of a session ordered by score, highest first.
// Ties keep join order.
func (s *Service) GetResults(ctx context.Context, sessionID string) (*Results, error) {
	ss, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	ps, err := s.repo.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	answers, err := s.repo.ListAnswers(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	type tally struct{ answered, correct int }
	tallies := make(map[string]tally, len(ps))
	for _, a := range answers {
		t := tallies[a.StudentID]
		t.answered++
		if a.IsCorrect {
			t.correct++
		}
		tallies[a.StudentID] = t
	}

	results := make([]ParticipantResult, 0, len(ps))
	for _, p := range ps {
		t := tallies[p.StudentID]
		results = append(results, ParticipantResult{
			StudentID: p.StudentID,
			Score:     p.Score,
			Answered:  t.answered,
			Correct:   t.correct,
			Accuracy:  accuracy(t.correct, t.answered),
			JoinedAt:  p.JoinedAt,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return &Results{
		Session:      *ss,
		Participants: results,
	}, nil
}

func accuracy(correct, answered int) decimal.Decimal {
	if answered == 0 {
		return decimal.Zero
	}

	return decimal.NewFromInt(int64(correct)).
		Div(decimal.NewFromInt(int64(answered))).
		Mul(hundred).
		Round(2)
}
