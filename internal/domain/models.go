package domain

import (
	"strings"
	"time"
)

// Question is an entry of a quiz's question bank, answer key included.
type Question struct {
	SequenceNo     int      `json:"sequenceNo"`
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	CorrectOptions []int    `json:"correctOptions"`
	Multiple       bool     `json:"multiple"`
}

// Quiz is the read-only quiz definition owned by the authoring side.
type Quiz struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Duration       int        `json:"duration"` // minutes
	TotalQuestions int        `json:"totalQuestions"`
	QuizQuestions  int        `json:"quizQuestions"` // sample size per session
	TeamSize       int        `json:"teamSize"`
	Questions      []Question `json:"questions"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// QuizSummary is the participant-safe listing view of a quiz.
type QuizSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Duration      int    `json:"duration"`
	QuizQuestions int    `json:"quizQuestions"`
	TeamSize      int    `json:"teamSize"`
}

// Summary strips the question bank.
func (q Quiz) Summary() QuizSummary {
	return QuizSummary{
		ID:            q.ID,
		Name:          q.Name,
		Duration:      q.Duration,
		QuizQuestions: q.QuizQuestions,
		TeamSize:      q.TeamSize,
	}
}

// DurationSeconds is the full time budget of one attempt.
func (q Quiz) DurationSeconds() int {
	return q.Duration * 60
}

// QuestionBySequence indexes the bank by sequence number.
func (q Quiz) QuestionBySequence() map[int]Question {
	index := make(map[int]Question, len(q.Questions))
	for _, question := range q.Questions {
		index[question.SequenceNo] = question
	}
	return index
}

// Validate applies the authoring rules a quiz must satisfy before it can be stored.
func (q Quiz) Validate() error {
	if strings.TrimSpace(q.Name) == "" {
		return Validation("quiz name is required")
	}
	if len(q.Questions) == 0 {
		return Validation("quiz must have at least one question")
	}
	if q.Duration <= 0 || q.QuizQuestions <= 0 || q.TotalQuestions <= 0 || q.TeamSize <= 0 {
		return Validation("duration, quizQuestions, totalQuestions and teamSize must be positive numbers")
	}
	if q.QuizQuestions > q.TotalQuestions {
		return Validation("quizQuestions (%d) cannot be greater than totalQuestions (%d)", q.QuizQuestions, q.TotalQuestions)
	}
	if q.TeamSize != 1 && q.TeamSize != 2 {
		return Validation("team size must be either 1 (individual) or 2 (dual)")
	}

	seen := make(map[int]struct{}, len(q.Questions))
	for _, question := range q.Questions {
		if question.SequenceNo <= 0 || strings.TrimSpace(question.Text) == "" || len(question.Options) == 0 {
			return Validation("each question must have sequenceNo, text and options")
		}
		if _, dup := seen[question.SequenceNo]; dup {
			return Validation("duplicate question sequenceNo %d", question.SequenceNo)
		}
		seen[question.SequenceNo] = struct{}{}

		if len(question.CorrectOptions) == 0 {
			return Validation("question %d has no correct option", question.SequenceNo)
		}
		if !question.Multiple && len(question.CorrectOptions) != 1 {
			return Validation("single-choice question %d must have exactly one correct option", question.SequenceNo)
		}
		for _, idx := range question.CorrectOptions {
			if idx < 0 || idx >= len(question.Options) {
				return Validation("question %d has correct option %d out of range", question.SequenceNo, idx)
			}
		}
	}
	return nil
}
