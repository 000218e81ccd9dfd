package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"quizit-service/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuizAdmin is the authoring surface: create, list and delete quizzes.
type QuizAdmin struct {
	catalog     QuizCatalog
	quizzes     QuizRepository
	sessions    SessionStore
	submissions SubmissionStore
	now         func() time.Time
	log         *zap.Logger
}

func NewQuizAdmin(catalog QuizCatalog, quizzes QuizRepository, sessions SessionStore, submissions SubmissionStore, opts ...Option) *QuizAdmin {
	o := buildOptions(opts)
	return &QuizAdmin{
		catalog:     catalog,
		quizzes:     quizzes,
		sessions:    sessions,
		submissions: submissions,
		now:         o.now,
		log:         o.logger.Named("quiz_admin"),
	}
}

// CreateQuiz validates and stores a quiz, assigning an ID when none is given.
// Saving over an existing ID replaces it; the cache is invalidated either way.
func (a *QuizAdmin) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	quiz.Name = strings.TrimSpace(quiz.Name)
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, err
	}
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = a.now()
	}
	if err := a.catalog.SaveQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	if err := a.quizzes.Invalidate(ctx, quiz.ID); err != nil {
		a.log.Warn("quiz cache invalidation failed", zap.String("quiz_id", quiz.ID), zap.Error(err))
	}
	a.log.Info("quiz saved", zap.String("quiz_id", quiz.ID), zap.Int("questions", len(quiz.Questions)))
	return quiz, nil
}

func (a *QuizAdmin) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	return a.catalog.ListQuizzes(ctx)
}

// DeletionReport counts the records removed by a cascading quiz deletion.
type DeletionReport struct {
	QuizID      string `json:"quizId"`
	Sessions    int    `json:"sessions"`
	Submissions int    `json:"submissions"`
}

// DeleteQuiz removes a quiz with all of its sessions and submissions. The quiz goes first so
// no new session or submission can be opened against it while the cascade runs. A repeat call
// after a partial failure finds the quiz gone and still sweeps what is left.
func (a *QuizAdmin) DeleteQuiz(ctx context.Context, quizID string) (DeletionReport, error) {
	if strings.TrimSpace(quizID) == "" {
		return DeletionReport{}, domain.Validation("quizId is required")
	}

	err := a.catalog.DeleteQuiz(ctx, quizID)
	missing := errors.Is(err, domain.ErrQuizNotFound)
	if err != nil && !missing {
		return DeletionReport{}, err
	}
	if err := a.quizzes.Invalidate(ctx, quizID); err != nil {
		a.log.Warn("quiz cache invalidation failed", zap.String("quiz_id", quizID), zap.Error(err))
	}

	report := DeletionReport{QuizID: quizID}
	if report.Sessions, err = a.sessions.DeleteAllForQuiz(ctx, quizID); err != nil {
		return report, err
	}
	if report.Submissions, err = a.submissions.DeleteAllForQuiz(ctx, quizID); err != nil {
		return report, err
	}
	if missing && report.Sessions == 0 && report.Submissions == 0 {
		return report, domain.ErrQuizNotFound
	}

	a.log.Info("quiz deleted",
		zap.String("quiz_id", quizID),
		zap.Int("sessions", report.Sessions),
		zap.Int("submissions", report.Submissions))
	return report, nil
}
