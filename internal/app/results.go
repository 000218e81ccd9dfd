package app

import (
	"context"

	"quizit-service/internal/domain"
	"golang.org/x/sync/errgroup"
)

// ResultsService scores submissions on read. Scores are never cached, so answer-key
// corrections apply to submissions that already landed.
type ResultsService struct {
	submissions SubmissionStore
	quizzes     QuizRepository
}

func NewResultsService(submissions SubmissionStore, quizzes QuizRepository) *ResultsService {
	return &ResultsService{submissions: submissions, quizzes: quizzes}
}

// GetResults returns one page of scored submissions for a quiz.
func (s *ResultsService) GetResults(ctx context.Context, quizID string, page domain.Page) (domain.ResultsPage, error) {
	if quizID == "" {
		return domain.ResultsPage{}, domain.Validation("quizId is required")
	}
	page = page.Normalize()

	var (
		quiz        domain.Quiz
		submissions []domain.Submission
		total       int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		quiz, err = s.quizzes.GetQuiz(gctx, quizID)
		return err
	})
	g.Go(func() error {
		var err error
		submissions, total, err = s.submissions.List(gctx, quizID, page)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.ResultsPage{}, err
	}

	results := make([]domain.Result, 0, len(submissions))
	for _, sub := range submissions {
		results = append(results, domain.Result{
			ParticipantID: sub.ParticipantID,
			Participant:   sub.Participant,
			Score:         ComputeScore(sub, quiz),
			QuestionCount: len(sub.Questions),
			SubmittedAt:   sub.SubmittedAt,
			TimeConsumed:  sub.TimeConsumed,
			Trigger:       sub.Trigger,
		})
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + page.Size - 1) / page.Size
	}
	return domain.ResultsPage{
		QuizID:     quizID,
		Results:    results,
		Total:      total,
		Page:       page.Number,
		PageSize:   page.Size,
		TotalPages: totalPages,
	}, nil
}
