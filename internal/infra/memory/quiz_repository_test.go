package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quizit-service/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewQuizCatalog(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls.Load())
	}

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls.Load())
	}
}

func TestQuizRepositoryInvalidate(t *testing.T) {
	catalog := NewQuizCatalog(map[string]domain.Quiz{"quiz-1": sampleQuiz()})
	loader := &countingLoader{QuizLoader: catalog}
	repo := NewQuizRepository(loader, time.Minute)
	ctx := context.Background()

	if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}

	updated := sampleQuiz()
	updated.Questions[0].CorrectOptions = []int{0}
	if err := catalog.SaveQuiz(ctx, updated); err != nil {
		t.Fatalf("save quiz: %v", err)
	}
	if err := repo.Invalidate(ctx, "quiz-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	got, err := repo.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz after invalidate: %v", err)
	}
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.calls.Load())
	}
	if got.Questions[0].CorrectOptions[0] != 0 {
		t.Fatalf("expected corrected answer key, got %v", got.Questions[0].CorrectOptions)
	}
}

func TestQuizRepositoryExpires(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewQuizCatalog(map[string]domain.Quiz{"quiz-1": sampleQuiz()})}
	repo := NewQuizRepository(loader, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	repo.clock = func() time.Time { return now }

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz after ttl: %v", err)
	}
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls.Load())
	}
}

func TestQuizRepositorySingleflight(t *testing.T) {
	release := make(chan struct{})
	loader := &countingLoader{
		QuizLoader: NewQuizCatalog(map[string]domain.Quiz{"quiz-1": sampleQuiz()}),
		gate:       release,
	}
	repo := NewQuizRepository(loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
				t.Errorf("get quiz: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if loader.calls.Load() != 1 {
		t.Fatalf("expected a single load for concurrent callers, got %d", loader.calls.Load())
	}
}

func TestQuizCatalogNotFound(t *testing.T) {
	catalog := NewQuizCatalog(nil)
	if _, err := catalog.LoadQuiz(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
	if err := catalog.DeleteQuiz(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound on delete, got %v", err)
	}
}

func TestQuizCatalogListOrdersByCreation(t *testing.T) {
	older := sampleQuiz()
	older.ID = "b"
	older.CreatedAt = time.Unix(100, 0)
	newer := sampleQuiz()
	newer.ID = "a"
	newer.CreatedAt = time.Unix(200, 0)
	catalog := NewQuizCatalog(map[string]domain.Quiz{"a": newer, "b": older})

	list, err := catalog.ListQuizzes(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "a" {
		t.Fatalf("unexpected order: %+v", list)
	}
}

type countingLoader struct {
	QuizLoader
	calls atomic.Int32
	gate  chan struct{}
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls.Add(1)
	if l.gate != nil {
		<-l.gate
	}
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:             "quiz-1",
		Name:           "Arithmetic",
		Duration:       30,
		TotalQuestions: 1,
		QuizQuestions:  1,
		TeamSize:       1,
		Questions: []domain.Question{
			{
				SequenceNo:     1,
				Text:           "What is 2 + 2?",
				Options:        []string{"3", "4"},
				CorrectOptions: []int{1},
			},
		},
	}
}
