package api

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/session"
)

type (
	ResultsDTO struct {
		Session      domain.SessionDTO      `json:"session"`
		Participants []ParticipantResultDTO `json:"participants"`
	}

	ParticipantResultDTO struct {
		StudentID string          `json:"studentId"`
		Score     int             `json:"score"`
		Answered  int             `json:"answered"`
		Correct   int             `json:"correct"`
		Accuracy  decimal.Decimal `json:"accuracy"`
		JoinedAt  time.Time       `json:"joinedAt"`
	}

	LeaderboardDTO struct {
		SessionID string                `json:"sessionId"`
		Entries   []LeaderboardEntryDTO `json:"entries"`
	}

	LeaderboardEntryDTO struct {
		Rank      int    `json:"rank"`
		StudentID string `json:"studentId"`
		Score     string `json:"score"`
	}
)

func toResultsDTO(r *session.Results) *ResultsDTO {
	dto := &ResultsDTO{
		Session:      r.Session.ToDTO(),
		Participants: make([]ParticipantResultDTO, 0, len(r.Participants)),
	}

	for _, p := range r.Participants {
		dto.Participants = append(dto.Participants, ParticipantResultDTO{
			StudentID: p.StudentID,
			Score:     p.Score,
			Answered:  p.Answered,
			Correct:   p.Correct,
			Accuracy:  p.Accuracy,
			JoinedAt:  p.JoinedAt,
		})
	}

	return dto
}

// toLeaderboardDTO ranks entries in order; equal scores share a rank.
func toLeaderboardDTO(l domain.Leaderboard) LeaderboardDTO {
	dto := LeaderboardDTO{
		SessionID: l.SessionID,
		Entries:   make([]LeaderboardEntryDTO, 0, len(l.Entries)),
	}

	rank := 0
	for i, e := range l.Entries {
		if i == 0 || e.Score != l.Entries[i-1].Score {
			rank = i + 1
		}
		dto.Entries = append(dto.Entries, LeaderboardEntryDTO{
			Rank:      rank,
			StudentID: e.StudentID,
			Score:     strconv.FormatFloat(e.Score, 'f', -1, 64),
		})
	}

	return dto
}
