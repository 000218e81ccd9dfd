package domain

import (
	"fmt"
	"strings"
	"time"
)

// SubmitTrigger records what finalized a session.
type SubmitTrigger string

const (
	TriggerManual     SubmitTrigger = "manual"
	TriggerTimeout    SubmitTrigger = "timeout"
	TriggerProctoring SubmitTrigger = "proctoring"
)

// ParseTrigger maps a client value to a trigger, defaulting to manual.
func ParseTrigger(raw string) SubmitTrigger {
	switch SubmitTrigger(strings.ToLower(strings.TrimSpace(raw))) {
	case TriggerTimeout:
		return TriggerTimeout
	case TriggerProctoring:
		return TriggerProctoring
	default:
		return TriggerManual
	}
}

// ParticipantInfo identifies the people behind an attempt (one or two team members).
type ParticipantInfo struct {
	Participant1Name   string `json:"participant1Name"`
	Participant1RollNo string `json:"participant1RollNo"`
	Participant2Name   string `json:"participant2Name,omitempty"`
	Participant2RollNo string `json:"participant2RollNo,omitempty"`
	Email              string `json:"email,omitempty"`
}

// Normalize trims every field.
func (p ParticipantInfo) Normalize() ParticipantInfo {
	return ParticipantInfo{
		Participant1Name:   strings.TrimSpace(p.Participant1Name),
		Participant1RollNo: strings.TrimSpace(p.Participant1RollNo),
		Participant2Name:   strings.TrimSpace(p.Participant2Name),
		Participant2RollNo: strings.TrimSpace(p.Participant2RollNo),
		Email:              strings.TrimSpace(p.Email),
	}
}

// Validate requires the first participant's name and roll number.
func (p ParticipantInfo) Validate() error {
	if strings.TrimSpace(p.Participant1Name) == "" || strings.TrimSpace(p.Participant1RollNo) == "" {
		return Validation("participant1Name and participant1RollNo are required")
	}
	return nil
}

// Submission is the immutable record created when a session is finalized.
type Submission struct {
	ID                  string            `json:"id"`
	ParticipantID       string            `json:"participantId"`
	QuizID              string            `json:"quizId"`
	Questions           []SessionQuestion `json:"questions"`
	Participant         ParticipantInfo   `json:"participant"`
	SubmittedAt         time.Time         `json:"submittedAt"`
	TimeConsumed        string            `json:"timeConsumed"`
	TimeConsumedSeconds int               `json:"timeConsumedSeconds"`
	TabSwitchCount      int               `json:"tabSwitchCount"`
	Trigger             SubmitTrigger     `json:"trigger"`
}

func (s Submission) Key() SessionKey {
	return SessionKey{ParticipantID: s.ParticipantID, QuizID: s.QuizID}
}

// FormatTimeConsumed renders seconds as "Xm Ys".
func FormatTimeConsumed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

// Page is a 1-based pagination request.
type Page struct {
	Number int
	Size   int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize applies defaults and bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Result is a scored view of one submission. It is derived on demand and never stored.
type Result struct {
	ParticipantID string          `json:"participantId"`
	Participant   ParticipantInfo `json:"participant"`
	Score         int             `json:"score"`
	QuestionCount int             `json:"questionCount"`
	SubmittedAt   time.Time       `json:"submittedAt"`
	TimeConsumed  string          `json:"timeConsumed"`
	Trigger       SubmitTrigger   `json:"trigger"`
}

// ResultsPage is a page of results for a quiz.
type ResultsPage struct {
	QuizID     string   `json:"quizId"`
	Results    []Result `json:"results"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalPages int      `json:"totalPages"`
}
