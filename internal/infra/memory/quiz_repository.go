package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"quizit-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuizLoader fetches quiz content from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository caches quizzes with TTL to avoid repeated DB hits.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		if quiz, ok := r.cached(quizID); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		r.mu.Lock()
		r.cache[quizID] = cachedQuiz{
			quiz:      quiz,
			expiresAt: r.clock().Add(r.ttlWithJitterLocked()),
		}
		r.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate drops the cached copy of a quiz.
func (r *QuizRepository) Invalidate(_ context.Context, quizID string) error {
	r.mu.Lock()
	delete(r.cache, quizID)
	r.mu.Unlock()
	r.sf.Forget(quizID)
	return nil
}

func (r *QuizRepository) cached(quizID string) (domain.Quiz, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[quizID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Quiz{}, false
	}
	return entry.quiz, true
}

func (r *QuizRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// QuizCatalog is an in-memory quiz store, used for local runs and tests.
type QuizCatalog struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewQuizCatalog(quizzes map[string]domain.Quiz) *QuizCatalog {
	c := &QuizCatalog{quizzes: make(map[string]domain.Quiz, len(quizzes))}
	for id, quiz := range quizzes {
		if quiz.ID == "" {
			quiz.ID = id
		}
		c.quizzes[id] = quiz
	}
	return c
}

func (c *QuizCatalog) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if quiz, ok := c.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (c *QuizCatalog) SaveQuiz(_ context.Context, quiz domain.Quiz) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quizzes[quiz.ID] = quiz
	return nil
}

func (c *QuizCatalog) ListQuizzes(_ context.Context) ([]domain.QuizSummary, error) {
	c.mu.RLock()
	quizzes := make([]domain.Quiz, 0, len(c.quizzes))
	for _, quiz := range c.quizzes {
		quizzes = append(quizzes, quiz)
	}
	c.mu.RUnlock()

	sort.Slice(quizzes, func(i, j int) bool {
		if !quizzes[i].CreatedAt.Equal(quizzes[j].CreatedAt) {
			return quizzes[i].CreatedAt.Before(quizzes[j].CreatedAt)
		}
		return quizzes[i].ID < quizzes[j].ID
	})
	out := make([]domain.QuizSummary, 0, len(quizzes))
	for _, quiz := range quizzes {
		out = append(out, quiz.Summary())
	}
	return out, nil
}

func (c *QuizCatalog) DeleteQuiz(_ context.Context, quizID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.quizzes[quizID]; !ok {
		return domain.ErrQuizNotFound
	}
	delete(c.quizzes, quizID)
	return nil
}
