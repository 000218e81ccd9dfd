package app

import (
	"context"
	"errors"
	"time"

	"quizit-service/internal/domain"
	"go.uber.org/zap"
)

// Verdict is the policy decision for a violation count.
type Verdict string

const (
	VerdictNone       Verdict = "none"
	VerdictWarning    Verdict = "warning"
	VerdictAutoSubmit Verdict = "auto_submit"
)

// DefaultMaxWarnings is the number of violations tolerated before auto-submission.
const DefaultMaxWarnings = 3

// ProctoringPolicy maps a violation count to a verdict: 1..MaxWarnings warn, anything above
// auto-submits.
type ProctoringPolicy struct {
	MaxWarnings int
}

func (p ProctoringPolicy) Evaluate(count int) Verdict {
	limit := p.MaxWarnings
	if limit <= 0 {
		limit = DefaultMaxWarnings
	}
	switch {
	case count <= 0:
		return VerdictNone
	case count <= limit:
		return VerdictWarning
	default:
		return VerdictAutoSubmit
	}
}

// ViolationOutcome is what the caller shows the participant after a violation.
type ViolationOutcome struct {
	TabSwitchCount int                `json:"tabSwitchCount"`
	Verdict        Verdict            `json:"verdict"`
	Submission     *domain.Submission `json:"submission,omitempty"`
}

// Proctor is the caller-side policy around the monitor: it records a violation and, once the
// threshold is crossed, finalizes the attempt through the coordinator.
type Proctor struct {
	sessions    *SessionService
	coordinator *SubmissionCoordinator
	policy      ProctoringPolicy
	log         *zap.Logger
	metrics     Metrics
	events      Publisher
	now         func() time.Time
}

func NewProctor(sessions *SessionService, coordinator *SubmissionCoordinator, policy ProctoringPolicy, opts ...Option) *Proctor {
	o := buildOptions(opts)
	return &Proctor{
		sessions:    sessions,
		coordinator: coordinator,
		policy:      policy,
		log:         o.logger.Named("proctor"),
		metrics:     o.metrics,
		events:      o.events,
		now:         o.now,
	}
}

// ReportViolation increments the counter and applies the policy. When the threshold is
// crossed and participant info is known, the session is auto-submitted; without it the
// verdict tells the client to submit. Losing the submit race to another trigger is not an error.
func (p *Proctor) ReportViolation(ctx context.Context, key domain.SessionKey, participant *domain.ParticipantInfo) (ViolationOutcome, error) {
	count, err := p.sessions.IncrementTabSwitch(ctx, key)
	if err != nil {
		return ViolationOutcome{}, err
	}
	outcome := ViolationOutcome{TabSwitchCount: count, Verdict: p.policy.Evaluate(count)}
	p.metrics.ViolationObserved(outcome.Verdict)
	p.events.Publish(SessionEvent{
		Type:           EventViolation,
		QuizID:         key.QuizID,
		ParticipantID:  key.ParticipantID,
		TabSwitchCount: count,
		Verdict:        outcome.Verdict,
		At:             p.now(),
	})

	if outcome.Verdict != VerdictAutoSubmit || participant == nil {
		return outcome, nil
	}

	p.log.Info("violation threshold crossed, auto-submitting",
		zap.String("quiz_id", key.QuizID),
		zap.String("participant_id", key.ParticipantID),
		zap.Int("tab_switch_count", count))
	submission, err := p.coordinator.Submit(ctx, SubmitRequest{
		Key:         key,
		Participant: *participant,
		Trigger:     domain.TriggerProctoring,
	})
	switch {
	case err == nil:
		outcome.Submission = &submission
	case errors.Is(err, domain.ErrAlreadySubmitted):
	default:
		return outcome, err
	}
	return outcome, nil
}
