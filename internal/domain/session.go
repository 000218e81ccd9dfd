package domain

import (
	"strings"
	"time"
)

// SessionKey identifies a participant's attempt at a quiz.
type SessionKey struct {
	ParticipantID string `json:"participantId"`
	QuizID        string `json:"quizId"`
}

// Validate rejects keys with missing identifiers.
func (k SessionKey) Validate() error {
	if strings.TrimSpace(k.ParticipantID) == "" || strings.TrimSpace(k.QuizID) == "" {
		return Validation("participantId and quizId are required")
	}
	return nil
}

func (k SessionKey) String() string {
	return k.QuizID + "/" + k.ParticipantID
}

// SessionQuestion is a question as carried by a session. It never holds the answer key.
type SessionQuestion struct {
	SequenceNo  int      `json:"sequenceNo"`
	Text        string   `json:"text"`
	Options     []string `json:"options"`
	Multiple    bool     `json:"multiple"`
	UserOptions []int    `json:"userOptions"`
}

// Session is the live, mutable record of one participant's attempt.
type Session struct {
	ParticipantID       string            `json:"participantId"`
	QuizID              string            `json:"quizId"`
	Questions           []SessionQuestion `json:"questions"`
	RemainingSeconds    int               `json:"remainingSeconds"`
	LastUpdated         time.Time         `json:"lastUpdated"`
	Completed           bool              `json:"completed"`
	ActiveQuestionIndex int               `json:"activeQuestionIndex"`
	SkippedQuestions    []int             `json:"skippedQuestions"`
	TabSwitchCount      int               `json:"tabSwitchCount"`
	CreatedAt           time.Time         `json:"createdAt"`
}

func (s Session) Key() SessionKey {
	return SessionKey{ParticipantID: s.ParticipantID, QuizID: s.QuizID}
}

// Deadline is the instant the stored time snapshot runs out.
func (s Session) Deadline() time.Time {
	return s.LastUpdated.Add(time.Duration(s.RemainingSeconds) * time.Second)
}

// OpenAt reports whether the snapshot window is still open at cutoff.
// It is the predicate the atomic submit transition evaluates inside the store.
func (s Session) OpenAt(cutoff time.Time) bool {
	return !s.Completed && s.Deadline().After(cutoff)
}

// NormalizeUserOptions replaces missing answer sets with empty ones and reports whether
// anything changed. Sessions written before userOptions existed are upgraded this way.
func (s *Session) NormalizeUserOptions() bool {
	changed := false
	for i := range s.Questions {
		if s.Questions[i].UserOptions == nil {
			s.Questions[i].UserOptions = []int{}
			changed = true
		}
	}
	if s.SkippedQuestions == nil {
		s.SkippedQuestions = []int{}
	}
	return changed
}

// SessionUpdate is a partial write to a session. Nil fields and a zero LastUpdated are
// left untouched.
type SessionUpdate struct {
	Questions           []SessionQuestion
	RemainingSeconds    *int
	ActiveQuestionIndex *int
	SkippedQuestions    []int
	LastUpdated         time.Time
}

// Apply writes the update onto s.
func (u SessionUpdate) Apply(s *Session) {
	if u.Questions != nil {
		s.Questions = u.Questions
	}
	if u.RemainingSeconds != nil {
		s.RemainingSeconds = *u.RemainingSeconds
	}
	if u.ActiveQuestionIndex != nil {
		s.ActiveQuestionIndex = *u.ActiveQuestionIndex
	}
	if u.SkippedQuestions != nil {
		s.SkippedQuestions = u.SkippedQuestions
	}
	if !u.LastUpdated.IsZero() {
		s.LastUpdated = u.LastUpdated
	}
}

// CloneQuestions deep-copies a question list so stored and returned sessions never share slices.
func CloneQuestions(in []SessionQuestion) []SessionQuestion {
	if in == nil {
		return nil
	}
	out := make([]SessionQuestion, len(in))
	for i, q := range in {
		out[i] = q
		out[i].Options = append([]string(nil), q.Options...)
		if q.UserOptions != nil {
			out[i].UserOptions = append([]int{}, q.UserOptions...)
		}
	}
	return out
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	out := s
	out.Questions = CloneQuestions(s.Questions)
	if s.SkippedQuestions != nil {
		out.SkippedQuestions = append([]int{}, s.SkippedQuestions...)
	}
	return out
}
