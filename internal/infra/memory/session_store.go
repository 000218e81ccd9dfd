package memory

import (
	"context"
	"sync"
	"time"

	"quizit-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore. One mutex guards every
// record, which makes each method a single atomic step.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionKey]*domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.SessionKey]*domain.Session),
	}
}

func (s *SessionStore) Find(_ context.Context, key domain.SessionKey) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[key]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *SessionStore) Create(_ context.Context, session domain.Session) error {
	key := session.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[key]; ok {
		return domain.ErrSessionExists
	}
	stored := session.Clone()
	s.sessions[key] = &stored
	return nil
}

func (s *SessionStore) Update(_ context.Context, key domain.SessionKey, update domain.SessionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.openLocked(key)
	if err != nil {
		return err
	}
	update.Questions = domain.CloneQuestions(update.Questions)
	if update.SkippedQuestions != nil {
		update.SkippedQuestions = append([]int{}, update.SkippedQuestions...)
	}
	update.Apply(session)
	return nil
}

func (s *SessionStore) IncrementTabSwitch(_ context.Context, key domain.SessionKey, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.openLocked(key)
	if err != nil {
		return 0, err
	}
	session.TabSwitchCount++
	session.LastUpdated = at
	return session.TabSwitchCount, nil
}

func (s *SessionStore) ConditionalComplete(_ context.Context, key domain.SessionKey, cutoff time.Time) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[key]
	if !ok || !session.OpenAt(cutoff) {
		return domain.Session{}, domain.ErrAlreadySubmitted
	}
	session.Completed = true
	return session.Clone(), nil
}

func (s *SessionStore) DeleteAllForQuiz(_ context.Context, quizID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key := range s.sessions {
		if key.QuizID == quizID {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed, nil
}

func (s *SessionStore) openLocked(key domain.SessionKey) (*domain.Session, error) {
	session, ok := s.sessions[key]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if session.Completed {
		return nil, domain.ErrAlreadyCompleted
	}
	return session, nil
}
