package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quizroom"

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_started_total",
		Help:      "Number of quiz sessions created, by a teacher or on behalf of a joining student.",
	})

	SessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_ended_total",
		Help:      "Number of quiz sessions that reached a terminal status.",
	}, []string{"status"})

	ParticipantsJoined = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "participants_joined_total",
		Help:      "Number of new session participants. Repeated joins are not counted.",
	})

	AnswersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answers_submitted_total",
		Help:      "Number of answers recorded.",
	}, []string{"correct"})

	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP API latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
