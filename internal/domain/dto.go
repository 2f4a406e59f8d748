package domain

import "time"

type (
	QuizDTO struct {
		ID            string        `json:"id"`
		Title         string        `json:"title"`
		Description   string        `json:"description,omitempty"`
		TeacherID     string        `json:"teacherId"`
		Code          string        `json:"code"`
		IsPublic      bool          `json:"isPublic"`
		Questions     []QuestionDTO `json:"questions"`
		QuestionCount int           `json:"questionCount"`
		CreatedAt     time.Time     `json:"createdAt"`
		UpdatedAt     time.Time     `json:"updatedAt"`
	}

	QuestionDTO struct {
		ID            string      `json:"id"`
		Text          string      `json:"text"`
		Options       []OptionDTO `json:"options"`
		CorrectAnswer string      `json:"correctAnswer,omitempty"`
		TimeLimit     int         `json:"timeLimit"`
	}

	OptionDTO struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}

	SessionDTO struct {
		ID        string         `json:"id"`
		QuizID    string         `json:"quizId"`
		TeacherID string         `json:"teacherId"`
		StartedAt time.Time      `json:"startedAt"`
		EndedAt   *time.Time     `json:"endedAt"`
		Status    SessionStatus  `json:"status"`
		Settings  map[string]any `json:"settings"`
		IsActive  bool           `json:"isActive"`
	}
)

func (q *Quiz) ToDTO() QuizDTO {
	dto := QuizDTO{
		ID:            q.ID,
		Title:         q.Title,
		Description:   q.Description,
		TeacherID:     q.TeacherID,
		Code:          q.Code,
		IsPublic:      q.IsPublic,
		Questions:     make([]QuestionDTO, 0, len(q.Questions)),
		QuestionCount: q.QuestionCount(),
		CreatedAt:     q.CreatedAt,
		UpdatedAt:     q.UpdatedAt,
	}

	for i := range q.Questions {
		dto.Questions = append(dto.Questions, q.Questions[i].ToDTO())
	}

	return dto
}

// ToPublicDTO is the projection shown to students: correct answers are stripped.
func (q *Quiz) ToPublicDTO() QuizDTO {
	dto := q.ToDTO()
	for i := range dto.Questions {
		dto.Questions[i].CorrectAnswer = ""
	}
	return dto
}

func (q *Question) ToDTO() QuestionDTO {
	dto := QuestionDTO{
		ID:            q.ID,
		Text:          q.Text,
		Options:       make([]OptionDTO, 0, len(q.Options)),
		CorrectAnswer: q.CorrectAnswerID,
		TimeLimit:     q.TimeLimit,
	}

	for i := range q.Options {
		dto.Options = append(dto.Options, q.Options[i].ToDTO())
	}

	return dto
}

func (o *Option) ToDTO() OptionDTO {
	return OptionDTO{ID: o.ID, Text: o.Text}
}

func (s *Session) ToDTO() SessionDTO {
	settings := make(map[string]any, len(s.Settings))
	for k, v := range s.Settings {
		settings[k] = v
	}

	return SessionDTO{
		ID:        s.ID,
		QuizID:    s.QuizID,
		TeacherID: s.TeacherID,
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
		Status:    s.Status,
		Settings:  settings,
		IsActive:  s.IsActive(),
	}
}
