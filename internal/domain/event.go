package domain

const (
	EventNameSessionStarted     = "session.started"
	EventNameSessionEnded       = "session.ended"
	EventNameParticipantJoined  = "participant.joined"
	EventNameScoreUpdated       = "score.updated"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventSessionStarted struct {
	Session Session
}

func (EventSessionStarted) Name() string { return EventNameSessionStarted }

// EventSessionEnded is published when a session is completed or cancelled.
type EventSessionEnded struct {
	Session Session
}

func (EventSessionEnded) Name() string { return EventNameSessionEnded }

type EventParticipantJoined struct {
	Participant Participant
}

func (EventParticipantJoined) Name() string { return EventNameParticipantJoined }

type EventScoreUpdated struct {
	Score Score
}

func (EventScoreUpdated) Name() string { return EventNameScoreUpdated }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
