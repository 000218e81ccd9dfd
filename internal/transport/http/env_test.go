package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http/httptest"
	"testing"
	"time"

	"quizit-service/internal/app"
	"quizit-service/internal/domain"
	"quizit-service/internal/infra/memory"
	"quizit-service/internal/metrics"
	"github.com/gin-gonic/gin"
)

const testQuizID = "quiz-1"

type testEnv struct {
	router  *gin.Engine
	metrics *metrics.Collector
	events  *app.EventHub
}

func newTestEnv(t *testing.T, cfg RouterConfig) *testEnv {
	t.Helper()
	catalog := memory.NewQuizCatalog(map[string]domain.Quiz{testQuizID: sampleQuiz()})
	quizzes := memory.NewQuizRepository(catalog, 0)
	sessionStore := memory.NewSessionStore()
	submissionStore := memory.NewSubmissionStore()

	collector := metrics.New()
	events := app.NewEventHub()
	opts := []app.Option{app.WithMetrics(collector), app.WithEvents(events)}

	sessions := app.NewSessionService(sessionStore, submissionStore, quizzes, app.NewQuestionSelector(rand.New(rand.NewSource(1))), opts...)
	coordinator := app.NewSubmissionCoordinator(sessionStore, submissionStore, quizzes, 0, opts...)
	svc := Services{
		Sessions:    sessions,
		Submissions: coordinator,
		Proctor:     app.NewProctor(sessions, coordinator, app.ProctoringPolicy{MaxWarnings: 3}, opts...),
		Results:     app.NewResultsService(submissionStore, quizzes),
		Admin:       app.NewQuizAdmin(catalog, quizzes, sessionStore, submissionStore, opts...),
		Events:      events,
	}
	cfg.Mode = gin.TestMode
	cfg.Metrics = collector
	return &testEnv{router: NewRouter(svc, cfg), metrics: collector, events: events}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

// sampleQuiz has six questions, samples four, and question n's correct option is n%3.
func sampleQuiz() domain.Quiz {
	questions := make([]domain.Question, 0, 6)
	for n := 1; n <= 6; n++ {
		questions = append(questions, domain.Question{
			SequenceNo:     n,
			Text:           fmt.Sprintf("question %d", n),
			Options:        []string{"a", "b", "c"},
			CorrectOptions: []int{n % 3},
		})
	}
	return domain.Quiz{
		ID:             testQuizID,
		Name:           "Transport quiz",
		Duration:       20,
		TotalQuestions: 6,
		QuizQuestions:  4,
		TeamSize:       1,
		Questions:      questions,
		CreatedAt:      time.Unix(1_700_000_000, 0),
	}
}

func participant() map[string]any {
	return map[string]any{"participant1Name": "Grace Hopper", "participant1RollNo": "R-7"}
}
