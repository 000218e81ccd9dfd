package cli

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"quizit-service/internal/app"
	"quizit-service/internal/config"
	"quizit-service/internal/logger"
	"quizit-service/internal/metrics"
	transport "quizit-service/internal/transport/http"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	backends, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backends.Close()

	seed, err := newSeed()
	if err != nil {
		return err
	}

	collector := metrics.New()
	events := app.NewEventHub()
	opts := []app.Option{
		app.WithLogger(log),
		app.WithMetrics(collector),
		app.WithEvents(events),
	}
	grace := config.TTLDuration(cfg.Submission.GracePeriod, 0)

	sessions := app.NewSessionService(backends.sessions, backends.submissions, backends.quizzes, app.NewQuestionSelector(rand.New(rand.NewSource(seed))), opts...)
	coordinator := app.NewSubmissionCoordinator(backends.sessions, backends.submissions, backends.quizzes, grace, opts...)
	services := transport.Services{
		Sessions:    sessions,
		Submissions: coordinator,
		Proctor:     app.NewProctor(sessions, coordinator, app.ProctoringPolicy{MaxWarnings: cfg.Proctoring.MaxWarnings}, opts...),
		Results:     app.NewResultsService(backends.submissions, backends.quizzes),
		Admin:       app.NewQuizAdmin(backends.catalog, backends.quizzes, backends.sessions, backends.submissions, opts...),
		Events:      events,
	}

	router := transport.NewRouter(services, transport.RouterConfig{
		Mode:              cfg.Server.Mode,
		CORSOrigins:       cfg.Server.CORSOrigins,
		AdminToken:        cfg.Server.AdminToken,
		ViolationDebounce: config.TTLDuration(cfg.Proctoring.Debounce, time.Second),
		Metrics:           collector,
		HealthChecks:      backends.health,
		Logger:            log,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting assessment service",
			zap.String("addr", server.Addr),
			zap.String("session_backend", cfg.SessionBackend()),
			zap.Duration("grace_period", grace))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		log.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newSeed draws the question selector seed from crypto/rand so restarts never replay
// the same question order.
func newSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
