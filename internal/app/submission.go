package app

import (
	"context"
	"errors"
	"time"

	"quizit-service/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubmitRequest finalizes a participant's attempt.
type SubmitRequest struct {
	Key         domain.SessionKey
	Participant domain.ParticipantInfo
	Trigger     domain.SubmitTrigger
}

// SubmissionCoordinator is the exactly-once finalizer. Manual clicks, client timeouts and
// proctoring auto-submits all funnel through Submit; the store's atomic conditional
// transition picks the single winner.
type SubmissionCoordinator struct {
	sessions    SessionStore
	submissions SubmissionStore
	quizzes     QuizRepository
	grace       time.Duration
	now         func() time.Time
	log         *zap.Logger
	metrics     Metrics
	events      Publisher
}

// NewSubmissionCoordinator builds a coordinator. grace widens the expiry predicate to absorb
// disagreement between the client's countdown and the stored snapshot; zero keeps it strict.
func NewSubmissionCoordinator(sessions SessionStore, submissions SubmissionStore, quizzes QuizRepository, grace time.Duration, opts ...Option) *SubmissionCoordinator {
	o := buildOptions(opts)
	if grace < 0 {
		grace = 0
	}
	return &SubmissionCoordinator{
		sessions:    sessions,
		submissions: submissions,
		quizzes:     quizzes,
		grace:       grace,
		now:         o.now,
		log:         o.logger.Named("submissions"),
		metrics:     o.metrics,
		events:      o.events,
	}
}

// Submit converts the live session into a Submission. A lost race, an already finalized
// session or a lapsed window all yield domain.ErrAlreadySubmitted.
func (c *SubmissionCoordinator) Submit(ctx context.Context, req SubmitRequest) (domain.Submission, error) {
	if req.Trigger == "" {
		req.Trigger = domain.TriggerManual
	}
	if err := req.Key.Validate(); err != nil {
		c.metrics.SubmissionObserved(req.Trigger, OutcomeRejected)
		return domain.Submission{}, err
	}
	participant := req.Participant.Normalize()
	if err := participant.Validate(); err != nil {
		c.metrics.SubmissionObserved(req.Trigger, OutcomeRejected)
		return domain.Submission{}, err
	}

	// Resolve the quiz before the irreversible transition so a store outage here cannot
	// strand a completed session without its submission. A deleted quiz accepts no more
	// submissions, which keeps its cascade from racing a late upsert.
	quiz, err := c.quizzes.GetQuiz(ctx, req.Key.QuizID)
	if err != nil {
		outcome := OutcomeError
		if errors.Is(err, domain.ErrQuizNotFound) {
			outcome = OutcomeRejected
		}
		c.metrics.SubmissionObserved(req.Trigger, outcome)
		return domain.Submission{}, err
	}
	durationSeconds := quiz.DurationSeconds()

	now := c.now()
	session, err := c.sessions.ConditionalComplete(ctx, req.Key, now.Add(-c.grace))
	if err != nil {
		if errors.Is(err, domain.ErrAlreadySubmitted) {
			c.metrics.SubmissionObserved(req.Trigger, OutcomeConflict)
			c.log.Debug("submit rejected",
				zap.String("quiz_id", req.Key.QuizID),
				zap.String("participant_id", req.Key.ParticipantID),
				zap.String("trigger", string(req.Trigger)))
		} else {
			c.metrics.SubmissionObserved(req.Trigger, OutcomeError)
		}
		return domain.Submission{}, err
	}

	remaining := max(session.RemainingSeconds, 0)
	consumed := max(durationSeconds-remaining, 0)
	session.NormalizeUserOptions()

	submission := domain.Submission{
		ID:                  uuid.NewString(),
		ParticipantID:       req.Key.ParticipantID,
		QuizID:              req.Key.QuizID,
		Questions:           session.Questions,
		Participant:         participant,
		SubmittedAt:         now,
		TimeConsumed:        domain.FormatTimeConsumed(consumed),
		TimeConsumedSeconds: consumed,
		TabSwitchCount:      session.TabSwitchCount,
		Trigger:             req.Trigger,
	}
	if err := c.submissions.Upsert(ctx, submission); err != nil {
		c.metrics.SubmissionObserved(req.Trigger, OutcomeError)
		c.log.Error("session completed but submission was not stored",
			zap.String("quiz_id", req.Key.QuizID),
			zap.String("participant_id", req.Key.ParticipantID),
			zap.Error(err))
		return domain.Submission{}, err
	}

	c.metrics.SubmissionObserved(req.Trigger, OutcomeAccepted)
	c.events.Publish(SessionEvent{
		Type:           EventSubmitted,
		QuizID:         req.Key.QuizID,
		ParticipantID:  req.Key.ParticipantID,
		TabSwitchCount: submission.TabSwitchCount,
		Submission:     &submission,
		At:             now,
	})
	c.log.Info("quiz submitted",
		zap.String("quiz_id", req.Key.QuizID),
		zap.String("participant_id", req.Key.ParticipantID),
		zap.String("trigger", string(req.Trigger)),
		zap.String("time_consumed", submission.TimeConsumed))
	return submission, nil
}
