package memory

import (
	"context"
	"sort"
	"sync"

	"quizit-service/internal/domain"
)

// SubmissionStore keeps finalized submissions in memory, one per participant and quiz.
type SubmissionStore struct {
	mu          sync.RWMutex
	submissions map[domain.SessionKey]domain.Submission
}

func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{
		submissions: make(map[domain.SessionKey]domain.Submission),
	}
}

func (s *SubmissionStore) Upsert(_ context.Context, submission domain.Submission) error {
	submission.Questions = domain.CloneQuestions(submission.Questions)
	s.mu.Lock()
	s.submissions[submission.Key()] = submission
	s.mu.Unlock()
	return nil
}

func (s *SubmissionStore) Find(_ context.Context, key domain.SessionKey) (domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	submission, ok := s.submissions[key]
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	submission.Questions = domain.CloneQuestions(submission.Questions)
	return submission, nil
}

func (s *SubmissionStore) List(_ context.Context, quizID string, page domain.Page) ([]domain.Submission, int, error) {
	page = page.Normalize()

	s.mu.RLock()
	var all []domain.Submission
	for key, submission := range s.submissions {
		if key.QuizID == quizID {
			all = append(all, submission)
		}
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].SubmittedAt.Equal(all[j].SubmittedAt) {
			return all[i].SubmittedAt.Before(all[j].SubmittedAt)
		}
		return all[i].ParticipantID < all[j].ParticipantID
	})

	total := len(all)
	start := min(page.Offset(), total)
	end := min(start+page.Size, total)
	out := make([]domain.Submission, 0, end-start)
	for _, submission := range all[start:end] {
		submission.Questions = domain.CloneQuestions(submission.Questions)
		out = append(out, submission)
	}
	return out, total, nil
}

func (s *SubmissionStore) DeleteAllForQuiz(_ context.Context, quizID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key := range s.submissions {
		if key.QuizID == quizID {
			delete(s.submissions, key)
			removed++
		}
	}
	return removed, nil
}
