package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"quizit-service/internal/app"
	"quizit-service/internal/domain"
	"quizit-service/internal/infra/postgres"
	pgmigrations "quizit-service/internal/infra/postgres/migrations"
	infraredis "quizit-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestAssessmentEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	applyMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	quizStore := postgres.NewQuizStore(pool)
	if err := quizStore.SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("save quiz: %v", err)
	}
	quizzes := infraredis.NewQuizRepository(redisClient, quizStore, 5*time.Minute)

	t.Run("postgres sessions", func(t *testing.T) {
		runAssessment(t, ctx, quizzes, postgres.NewSessionStore(pool), postgres.NewSubmissionStore(pool))
	})
	t.Run("redis sessions", func(t *testing.T) {
		runAssessment(t, ctx, quizzes, infraredis.NewSessionStore(redisClient, 5*time.Minute), infraredis.NewSubmissionStore(redisClient))
	})
	t.Run("postgres expiry boundary", func(t *testing.T) {
		runExpiryBoundary(t, ctx, postgres.NewSessionStore(pool))
	})
	t.Run("redis expiry boundary", func(t *testing.T) {
		runExpiryBoundary(t, ctx, infraredis.NewSessionStore(redisClient, 5*time.Minute))
	})
}

// runExpiryBoundary pins the deadline predicate: a session whose last_updated plus
// remaining_seconds equals the cutoff is expired, one millisecond earlier it is not.
func runExpiryBoundary(t *testing.T, ctx context.Context, sessions app.SessionStore) {
	t.Helper()
	t0 := time.Now().UTC().Truncate(time.Millisecond)
	key := domain.SessionKey{ParticipantID: "boundary", QuizID: "quiz-boundary"}
	session := domain.Session{
		ParticipantID: key.ParticipantID,
		QuizID:        key.QuizID,
		Questions: []domain.SessionQuestion{
			{SequenceNo: 1, Text: "q1", Options: []string{"a", "b"}, UserOptions: []int{}},
		},
		RemainingSeconds: 60,
		LastUpdated:      t0,
		SkippedQuestions: []int{},
		CreatedAt:        t0,
	}
	defer func() { _, _ = sessions.DeleteAllForQuiz(ctx, key.QuizID) }()

	remaining := 30
	if err := sessions.Update(ctx, key, domain.SessionUpdate{RemainingSeconds: &remaining}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected update of missing session to report not found, got %v", err)
	}
	if err := sessions.Create(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}

	deadline := t0.Add(60 * time.Second)
	if _, err := sessions.ConditionalComplete(ctx, key, deadline); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected cutoff at the deadline to be expired, got %v", err)
	}
	completed, err := sessions.ConditionalComplete(ctx, key, deadline.Add(-time.Millisecond))
	if err != nil {
		t.Fatalf("expected cutoff before the deadline to complete, got %v", err)
	}
	if !completed.Completed || completed.RemainingSeconds != 60 || !completed.LastUpdated.Equal(t0) {
		t.Fatalf("unexpected completed snapshot: %+v", completed)
	}

	// A finished session refuses further writes.
	if err := sessions.Update(ctx, key, domain.SessionUpdate{RemainingSeconds: &remaining}); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected update of completed session refused, got %v", err)
	}
	stored, err := sessions.Find(ctx, key)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.RemainingSeconds != 60 || len(stored.Questions) != 1 {
		t.Fatalf("refused update changed the session: %+v", stored)
	}
}

// runAssessment drives one attempt from creation to results, racing several submits.
func runAssessment(t *testing.T, ctx context.Context, quizzes app.QuizRepository, sessions app.SessionStore, submissions app.SubmissionStore) {
	t.Helper()
	selector := app.NewQuestionSelector(rand.New(rand.NewSource(42)))
	service := app.NewSessionService(sessions, submissions, quizzes, selector)
	coordinator := app.NewSubmissionCoordinator(sessions, submissions, quizzes, 0)
	results := app.NewResultsService(submissions, quizzes)
	key := domain.SessionKey{ParticipantID: "u1", QuizID: "quiz-1"}

	session, err := service.CreateOrResume(ctx, key, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(session.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(session.Questions))
	}

	resumed, err := service.CreateOrResume(ctx, key, 0)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	for i := range session.Questions {
		if resumed.Questions[i].SequenceNo != session.Questions[i].SequenceNo {
			t.Fatalf("resume changed questions at %d", i)
		}
	}

	answers := make([]domain.SessionQuestion, 0, len(session.Questions))
	for _, q := range session.Questions {
		answers = append(answers, domain.SessionQuestion{SequenceNo: q.SequenceNo, UserOptions: []int{q.SequenceNo % 2}})
	}
	if err := service.SaveProgress(ctx, app.Progress{Key: key, Answers: answers}); err != nil {
		t.Fatalf("save progress: %v", err)
	}
	if err := service.Heartbeat(ctx, key, 240); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if _, err := service.IncrementTabSwitch(ctx, key); err != nil {
		t.Fatalf("tab switch: %v", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		conflict int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := coordinator.Submit(ctx, app.SubmitRequest{
				Key:         key,
				Participant: domain.ParticipantInfo{Participant1Name: "Alice", Participant1RollNo: "R1"},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, domain.ErrAlreadySubmitted):
				conflict++
			default:
				t.Errorf("submit: %v", err)
			}
		}()
	}
	wg.Wait()
	if winners != 1 || conflict != 7 {
		t.Fatalf("expected exactly one winning submit, got winners=%d conflicts=%d", winners, conflict)
	}

	done, err := service.CheckCompleted(ctx, key)
	if err != nil || !done {
		t.Fatalf("expected completed session, got %v err=%v", done, err)
	}

	page, err := results.GetResults(ctx, "quiz-1", domain.Page{})
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if page.Total != 1 || len(page.Results) != 1 {
		t.Fatalf("expected one result, got %+v", page)
	}
	got := page.Results[0]
	if got.Score != len(session.Questions) || got.TimeConsumed != "1m 0s" {
		t.Fatalf("unexpected result %+v", got)
	}

	if _, err := sessions.DeleteAllForQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("cleanup sessions: %v", err)
	}
	if _, err := submissions.DeleteAllForQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("cleanup submissions: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func applyMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

// sampleQuiz samples three of four questions; question n's correct option is n%2.
func sampleQuiz() domain.Quiz {
	questions := make([]domain.Question, 0, 4)
	for n := 1; n <= 4; n++ {
		questions = append(questions, domain.Question{
			SequenceNo:     n,
			Text:           fmt.Sprintf("question %d", n),
			Options:        []string{"yes", "no"},
			CorrectOptions: []int{n % 2},
		})
	}
	return domain.Quiz{
		ID:             "quiz-1",
		Name:           "Integration quiz",
		Duration:       5,
		TotalQuestions: 4,
		QuizQuestions:  3,
		TeamSize:       1,
		Questions:      questions,
		CreatedAt:      time.Now().UTC(),
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
