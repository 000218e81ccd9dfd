package cli

import (
	"context"
	"fmt"
	"time"

	"quizit-service/internal/app"
	"quizit-service/internal/config"
	"quizit-service/internal/domain"
	"quizit-service/internal/infra/memory"
	"quizit-service/internal/infra/postgres"
	redisstore "quizit-service/internal/infra/redis"
	transport "quizit-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// quizSource is the authoritative quiz store: it feeds the cache and takes admin writes.
type quizSource interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	app.QuizCatalog
}

type backends struct {
	quizzes     app.QuizRepository
	catalog     app.QuizCatalog
	sessions    app.SessionStore
	submissions app.SubmissionStore
	health      map[string]transport.HealthCheck
	closers     []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends connects the configured stores. Quizzes live in Postgres when it is configured
// and are cached in Redis when it is; sessions and submissions go to cfg.SessionBackend().
func openBackends(ctx context.Context, cfg config.Config, log *zap.Logger) (*backends, error) {
	b := &backends{health: make(map[string]transport.HealthCheck)}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
		b.health["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		b.health["postgres"] = pool.Ping
	}

	var source quizSource
	if pool != nil {
		source = postgres.NewQuizStore(pool)
	} else {
		log.Warn("postgres not configured, serving built-in sample quizzes from memory")
		source = memory.NewQuizCatalog(sampleQuizzes())
	}
	b.catalog = source

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if redisClient != nil {
		b.quizzes = redisstore.NewQuizRepository(redisClient, source, quizTTL)
	} else {
		b.quizzes = memory.NewQuizRepository(source, quizTTL)
	}

	switch cfg.SessionBackend() {
	case config.BackendRedis:
		b.sessions = redisstore.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
		b.submissions = redisstore.NewSubmissionStore(redisClient)
	case config.BackendPostgres:
		b.sessions = postgres.NewSessionStore(pool)
		b.submissions = postgres.NewSubmissionStore(pool)
	default:
		log.Warn("sessions are kept in memory and will not survive a restart")
		b.sessions = memory.NewSessionStore()
		b.submissions = memory.NewSubmissionStore()
	}
	return b, nil
}

// sampleQuizzes seeds the in-memory catalog when no database is configured.
func sampleQuizzes() map[string]domain.Quiz {
	questions := []domain.Question{
		{SequenceNo: 1, Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOptions: []int{1}},
		{SequenceNo: 2, Text: "Which of these are prime?", Options: []string{"2", "4", "7", "9"}, CorrectOptions: []int{0, 2}, Multiple: true},
		{SequenceNo: 3, Text: "What does HTTP stand for?", Options: []string{"HyperText Transfer Protocol", "High Transfer Text Protocol"}, CorrectOptions: []int{0}},
		{SequenceNo: 4, Text: "Which keyword starts a goroutine?", Options: []string{"async", "go", "spawn"}, CorrectOptions: []int{1}},
		{SequenceNo: 5, Text: "How many bits are in a byte?", Options: []string{"4", "8", "16"}, CorrectOptions: []int{1}},
	}
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:             "quiz-1",
			Name:           "Warm-up",
			Duration:       10,
			TotalQuestions: len(questions),
			QuizQuestions:  3,
			TeamSize:       1,
			Questions:      questions,
			CreatedAt:      time.Date(2024, 11, 22, 0, 0, 0, 0, time.UTC),
		},
	}
}
