package app

import (
	"context"
	"time"

	"quizit-service/internal/domain"
)

// QuizRepository loads quiz definitions (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	// Invalidate drops any cached copy so answer-key corrections are picked up.
	Invalidate(ctx context.Context, quizID string) error
}

// QuizCatalog is the authoring-side store of quiz definitions.
type QuizCatalog interface {
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
	ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error)
	DeleteQuiz(ctx context.Context, quizID string) error
}

// SessionStore abstracts how sessions are stored (in-memory, Redis, Postgres).
//
// Every mutating method targets a single record in a single store operation and refuses
// to touch a completed session (domain.ErrAlreadyCompleted).
type SessionStore interface {
	// Find returns domain.ErrSessionNotFound when no session exists.
	Find(ctx context.Context, key domain.SessionKey) (domain.Session, error)
	// Create returns domain.ErrSessionExists when a session already exists for the key.
	Create(ctx context.Context, session domain.Session) error
	Update(ctx context.Context, key domain.SessionKey, update domain.SessionUpdate) error
	// IncrementTabSwitch atomically bumps the violation counter, stamps lastUpdated and
	// returns the new count.
	IncrementTabSwitch(ctx context.Context, key domain.SessionKey, at time.Time) (int, error)
	// ConditionalComplete atomically marks the session completed if it is still open at
	// cutoff (see domain.Session.OpenAt). Otherwise it returns domain.ErrAlreadySubmitted.
	ConditionalComplete(ctx context.Context, key domain.SessionKey, cutoff time.Time) (domain.Session, error)
	DeleteAllForQuiz(ctx context.Context, quizID string) (int, error)
}

// SubmissionStore persists finalized submissions keyed by (participant, quiz).
type SubmissionStore interface {
	Upsert(ctx context.Context, submission domain.Submission) error
	// Find returns domain.ErrSubmissionNotFound when nothing was submitted.
	Find(ctx context.Context, key domain.SessionKey) (domain.Submission, error)
	// List returns one page of a quiz's submissions ordered by submission time, and the total.
	List(ctx context.Context, quizID string, page domain.Page) ([]domain.Submission, int, error)
	DeleteAllForQuiz(ctx context.Context, quizID string) (int, error)
}
