package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
)

func capitals() domain.Quiz {
	return domain.Quiz{
		ID:        "quiz-1",
		Title:     "Capitals",
		TeacherID: "teacher-1",
		Code:      "ABC234",
		Questions: []domain.Question{
			{
				ID:   "q1",
				Text: "Capital of France?",
				Options: []domain.Option{
					{ID: "A", Text: "Paris"},
					{ID: "B", Text: "Lyon"},
				},
				CorrectAnswerID: "A",
				TimeLimit:       30,
			},
		},
	}
}

func TestQuiz_Validate(t *testing.T) {
	tests := map[string]struct {
		arrange func(q *domain.Quiz)
		wantMsg string
	}{
		"valid quiz": {
			arrange: func(*domain.Quiz) {},
		},
		"zero questions": {
			arrange: func(q *domain.Quiz) { q.Questions = nil },
			wantMsg: "questions must contain at least 1 item",
		},
		"blank title": {
			arrange: func(q *domain.Quiz) { q.Title = "   " },
			wantMsg: "title must not be blank",
		},
		"missing teacher": {
			arrange: func(q *domain.Quiz) { q.TeacherID = "" },
			wantMsg: "teacherId is a required field",
		},
		"missing code": {
			arrange: func(q *domain.Quiz) { q.Code = "" },
			wantMsg: "code is a required field",
		},
		"correct answer matches no option": {
			arrange: func(q *domain.Quiz) { q.Questions[0].CorrectAnswerID = "C" },
			wantMsg: "correctAnswer must match the id of one of the options",
		},
		"single option": {
			arrange: func(q *domain.Quiz) { q.Questions[0].Options = q.Questions[0].Options[:1] },
			wantMsg: "options must contain at least 2 items",
		},
		"non positive time limit": {
			arrange: func(q *domain.Quiz) { q.Questions[0].TimeLimit = 0 },
			wantMsg: "timeLimit must be greater than 0",
		},
		"blank option text": {
			arrange: func(q *domain.Quiz) { q.Questions[0].Options[1].Text = " " },
			wantMsg: "text must not be blank",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			q := capitals()
			tt.arrange(&q)

			err := q.Validate()
			if tt.wantMsg == "" {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			e := errors.Convert(err)
			assert.Equal(t, errors.CodeInvalidArgument, e.Code)
			assert.Contains(t, e.Message, "invalid quiz data")
			assert.Contains(t, e.Message, tt.wantMsg)
		})
	}
}

func TestQuestion_Validate(t *testing.T) {
	q := capitals().Questions[0]
	require.NoError(t, q.Validate())
	assert.True(t, q.IsCorrectAnswer("A"))
	assert.False(t, q.IsCorrectAnswer("B"))

	q.Text = ""
	assert.True(t, errors.Is(q.Validate(), errors.CodeInvalidArgument))
}

func TestOption_Validate(t *testing.T) {
	require.NoError(t, (&domain.Option{ID: "A", Text: "Paris"}).Validate())
	assert.Error(t, (&domain.Option{ID: "", Text: "Paris"}).Validate())
	assert.Error(t, (&domain.Option{ID: "A", Text: ""}).Validate())
}

func TestQuiz_QuestionCount(t *testing.T) {
	q := capitals()
	assert.Equal(t, 1, q.QuestionCount())

	got, ok := q.Question("q1")
	require.True(t, ok)
	assert.Equal(t, "Capital of France?", got.Text)

	_, ok = q.Question("q2")
	assert.False(t, ok)
}

func TestQuestion_UnmarshalJSON(t *testing.T) {
	tests := map[string]struct {
		in   string
		want domain.Question
	}{
		"camel case": {
			in: `{"id":"q1","text":"t","options":[{"id":"A","text":"a"}],"correctAnswer":"A","timeLimit":20}`,
			want: domain.Question{ID: "q1", Text: "t", Options: []domain.Option{{ID: "A", Text: "a"}},
				CorrectAnswerID: "A", TimeLimit: 20},
		},
		"snake case": {
			in: `{"id":"q1","text":"t","options":[],"correct_answer":"B","time_limit":15}`,
			want: domain.Question{ID: "q1", Text: "t", Options: []domain.Option{},
				CorrectAnswerID: "B", TimeLimit: 15},
		},
		"default time limit": {
			in:   `{"id":"q1","text":"t","correctAnswer":"A"}`,
			want: domain.Question{ID: "q1", Text: "t", CorrectAnswerID: "A", TimeLimit: domain.DefaultTimeLimit},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var got domain.Question
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSession_Lifecycle(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := domain.NewSession("s1", "quiz-1", "teacher-1", start)
	require.NoError(t, s.Validate())
	assert.True(t, s.IsActive())

	end := start.Add(time.Hour)
	require.NoError(t, s.Complete(end))
	assert.Equal(t, domain.SessionStatusCompleted, s.Status)
	assert.Equal(t, end, *s.EndedAt)

	err := s.Complete(end.Add(time.Hour))
	assert.True(t, errors.Is(err, errors.CodeFailedPrecondition))
	assert.Equal(t, end, *s.EndedAt, "ended at must not change twice")

	assert.Error(t, s.Cancel(end.Add(time.Hour)))
	assert.Equal(t, domain.SessionStatusCompleted, s.Status)
}

func TestSession_Validate(t *testing.T) {
	s := domain.NewSession("s1", "quiz-1", "teacher-1", time.Time{})
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, errors.Convert(err).Message, "startedAt is a required field")

	s = domain.NewSession("s1", "quiz-1", "teacher-1", time.Now())
	s.Status = "paused"
	assert.Error(t, s.Validate())
}

func TestQuiz_ToDTO(t *testing.T) {
	q := capitals()

	dto := q.ToDTO()
	assert.Equal(t, 1, dto.QuestionCount)
	assert.Equal(t, "A", dto.Questions[0].CorrectAnswer)

	pub := q.ToPublicDTO()
	assert.Empty(t, pub.Questions[0].CorrectAnswer)
	assert.Equal(t, "A", q.Questions[0].CorrectAnswerID, "public projection must not mutate the quiz")

	b, err := json.Marshal(pub)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "correctAnswer")
}

func TestSession_ToDTO(t *testing.T) {
	s := domain.NewSession("s1", "quiz-1", "teacher-1", time.Now())
	s.Settings["shuffle"] = true

	dto := s.ToDTO()
	assert.True(t, dto.IsActive)
	assert.Nil(t, dto.EndedAt)

	dto.Settings["shuffle"] = false
	assert.Equal(t, true, s.Settings["shuffle"], "settings must be copied")
}
