package app

import (
	"math/rand"
	"sync"

	"quizit-service/internal/domain"
)

// QuestionSelector samples a quiz's bank into a session-private question set.
type QuestionSelector struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewQuestionSelector uses rnd for every draw; pass a fixed seed for reproducible selection.
func NewQuestionSelector(rnd *rand.Rand) *QuestionSelector {
	return &QuestionSelector{rnd: rnd}
}

// Select draws quiz.QuizQuestions items without replacement through a uniform permutation.
// The answer key never leaves this function: SessionQuestion has no field for it.
func (s *QuestionSelector) Select(quiz domain.Quiz) []domain.SessionQuestion {
	bank := quiz.Questions
	n := quiz.QuizQuestions
	if n <= 0 || n > len(bank) {
		n = len(bank)
	}

	s.mu.Lock()
	perm := s.rnd.Perm(len(bank))
	s.mu.Unlock()

	selected := make([]domain.SessionQuestion, 0, n)
	for _, idx := range perm[:n] {
		q := bank[idx]
		selected = append(selected, domain.SessionQuestion{
			SequenceNo:  q.SequenceNo,
			Text:        q.Text,
			Options:     append([]string(nil), q.Options...),
			Multiple:    q.Multiple,
			UserOptions: []int{},
		})
	}
	return selected
}
