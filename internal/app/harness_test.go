package app_test

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"quizit-service/internal/app"
	"quizit-service/internal/domain"
	"quizit-service/internal/infra/memory"
)

const quizID = "quiz-1"

type harness struct {
	mu  sync.Mutex
	now time.Time

	catalog     *memory.QuizCatalog
	quizzes     *memory.QuizRepository
	sessions    *memory.SessionStore
	submissions *memory.SubmissionStore

	service     *app.SessionService
	coordinator *app.SubmissionCoordinator
	proctor     *app.Proctor
	results     *app.ResultsService
	admin       *app.QuizAdmin
}

func newHarness(t *testing.T, grace time.Duration) *harness {
	t.Helper()
	h := &harness{now: time.Unix(1_700_000_000, 0)}
	h.catalog = memory.NewQuizCatalog(map[string]domain.Quiz{quizID: sampleQuiz()})
	// ttl 0 disables caching so catalog edits are visible immediately
	h.quizzes = memory.NewQuizRepository(h.catalog, 0)
	h.sessions = memory.NewSessionStore()
	h.submissions = memory.NewSubmissionStore()

	clock := app.WithClock(h.clock)
	selector := app.NewQuestionSelector(rand.New(rand.NewSource(7)))
	h.service = app.NewSessionService(h.sessions, h.submissions, h.quizzes, selector, clock)
	h.coordinator = app.NewSubmissionCoordinator(h.sessions, h.submissions, h.quizzes, grace, clock)
	h.proctor = app.NewProctor(h.service, h.coordinator, app.ProctoringPolicy{MaxWarnings: 3}, clock)
	h.results = app.NewResultsService(h.submissions, h.quizzes)
	h.admin = app.NewQuizAdmin(h.catalog, h.quizzes, h.sessions, h.submissions, clock)
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	h.now = h.now.Add(d)
	h.mu.Unlock()
}

func key(participant string) domain.SessionKey {
	return domain.SessionKey{ParticipantID: participant, QuizID: quizID}
}

func participantInfo(rollNo string) domain.ParticipantInfo {
	return domain.ParticipantInfo{Participant1Name: "Ada Lovelace", Participant1RollNo: rollNo}
}

// sampleQuiz has ten questions and samples five per session. Question n's correct option
// is n%4; question 10 is multiple choice with options 0 and 2 correct.
func sampleQuiz() domain.Quiz {
	questions := make([]domain.Question, 0, 10)
	for n := 1; n <= 10; n++ {
		q := domain.Question{
			SequenceNo:     n,
			Text:           fmt.Sprintf("question %d", n),
			Options:        []string{"a", "b", "c", "d"},
			CorrectOptions: []int{n % 4},
		}
		if n == 10 {
			q.Multiple = true
			q.CorrectOptions = []int{0, 2}
		}
		questions = append(questions, q)
	}
	return domain.Quiz{
		ID:             quizID,
		Name:           "General knowledge",
		Duration:       30,
		TotalQuestions: 10,
		QuizQuestions:  5,
		TeamSize:       1,
		Questions:      questions,
	}
}

// correctAnswers answers every question of a session correctly.
func correctAnswers(questions []domain.SessionQuestion) []domain.SessionQuestion {
	out := make([]domain.SessionQuestion, 0, len(questions))
	for _, q := range questions {
		options := []int{q.SequenceNo % 4}
		if q.SequenceNo == 10 {
			options = []int{2, 0}
		}
		out = append(out, domain.SessionQuestion{SequenceNo: q.SequenceNo, UserOptions: options})
	}
	return out
}
