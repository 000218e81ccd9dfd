package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quizit-service/internal/domain"
	"go.uber.org/zap"
)

// SessionService owns a session from creation until it is handed to the SubmissionCoordinator.
type SessionService struct {
	sessions    SessionStore
	submissions SubmissionStore
	quizzes     QuizRepository
	selector    *QuestionSelector
	now         func() time.Time
	log         *zap.Logger
	metrics     Metrics
}

func NewSessionService(sessions SessionStore, submissions SubmissionStore, quizzes QuizRepository, selector *QuestionSelector, opts ...Option) *SessionService {
	o := buildOptions(opts)
	return &SessionService{
		sessions:    sessions,
		submissions: submissions,
		quizzes:     quizzes,
		selector:    selector,
		now:         o.now,
		log:         o.logger.Named("sessions"),
		metrics:     o.metrics,
	}
}

// CreateOrResume returns the participant's live session, creating it on first call.
// durationMinutes <= 0 falls back to the quiz's configured duration.
func (s *SessionService) CreateOrResume(ctx context.Context, key domain.SessionKey, durationMinutes int) (domain.Session, error) {
	if err := key.Validate(); err != nil {
		return domain.Session{}, err
	}

	existing, err := s.sessions.Find(ctx, key)
	switch {
	case err == nil:
		return s.resume(ctx, existing)
	case !errors.Is(err, domain.ErrSessionNotFound):
		return domain.Session{}, err
	}

	// The submission outlives its session record when a store expires or drops sessions,
	// so it is what decides whether the attempt is over.
	_, err = s.submissions.Find(ctx, key)
	switch {
	case err == nil:
		return domain.Session{}, domain.ErrAlreadyCompleted
	case !errors.Is(err, domain.ErrSubmissionNotFound):
		return domain.Session{}, err
	}

	quiz, err := s.quizzes.GetQuiz(ctx, key.QuizID)
	if err != nil {
		return domain.Session{}, err
	}
	if durationMinutes <= 0 {
		durationMinutes = quiz.Duration
	}

	now := s.now()
	session := domain.Session{
		ParticipantID:       key.ParticipantID,
		QuizID:              key.QuizID,
		Questions:           s.selector.Select(quiz),
		RemainingSeconds:    durationMinutes * 60,
		LastUpdated:         now,
		Completed:           false,
		ActiveQuestionIndex: 0,
		SkippedQuestions:    []int{},
		TabSwitchCount:      0,
		CreatedAt:           now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		if !errors.Is(err, domain.ErrSessionExists) {
			return domain.Session{}, err
		}
		// Lost a concurrent create; the winner's questions are the session's questions.
		existing, err := s.sessions.Find(ctx, key)
		if err != nil {
			return domain.Session{}, err
		}
		return s.resume(ctx, existing)
	}

	s.metrics.SessionStarted(false)
	s.log.Info("session created",
		zap.String("quiz_id", key.QuizID),
		zap.String("participant_id", key.ParticipantID),
		zap.Int("questions", len(session.Questions)),
		zap.Int("remaining_seconds", session.RemainingSeconds))
	return session.Clone(), nil
}

func (s *SessionService) resume(ctx context.Context, session domain.Session) (domain.Session, error) {
	if session.Completed {
		return domain.Session{}, domain.ErrAlreadyCompleted
	}
	if session.NormalizeUserOptions() {
		// One-time field upgrade; the time snapshot is left as stored.
		err := s.sessions.Update(ctx, session.Key(), domain.SessionUpdate{Questions: session.Questions})
		if err != nil {
			return domain.Session{}, err
		}
	}
	s.metrics.SessionStarted(true)
	return session, nil
}

// GetSession returns the stored session, answer key excluded by construction.
func (s *SessionService) GetSession(ctx context.Context, key domain.SessionKey) (domain.Session, error) {
	if err := key.Validate(); err != nil {
		return domain.Session{}, err
	}
	session, err := s.sessions.Find(ctx, key)
	if err != nil {
		return domain.Session{}, err
	}
	session.NormalizeUserOptions()
	return session, nil
}

// Heartbeat stores the client's countdown as the new time snapshot. Negative values clamp to 0;
// the reported value is otherwise trusted.
func (s *SessionService) Heartbeat(ctx context.Context, key domain.SessionKey, remainingSeconds int) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if remainingSeconds < 0 {
		remainingSeconds = 0
	}
	return s.sessions.Update(ctx, key, domain.SessionUpdate{
		RemainingSeconds: &remainingSeconds,
		LastUpdated:      s.now(),
	})
}

// GetRemaining returns the stored snapshot verbatim, without extrapolating from lastUpdated.
func (s *SessionService) GetRemaining(ctx context.Context, key domain.SessionKey) (int, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	session, err := s.sessions.Find(ctx, key)
	if err != nil {
		return 0, err
	}
	return session.RemainingSeconds, nil
}

// CheckCompleted reports whether the session has been finalized.
func (s *SessionService) CheckCompleted(ctx context.Context, key domain.SessionKey) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	session, err := s.sessions.Find(ctx, key)
	if err != nil {
		return false, err
	}
	return session.Completed, nil
}

// IncrementTabSwitch records one proctoring violation and returns the new count.
// Policy lives with the caller (see Proctor).
func (s *SessionService) IncrementTabSwitch(ctx context.Context, key domain.SessionKey) (int, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	return s.sessions.IncrementTabSwitch(ctx, key, s.now())
}

// Progress is a partial save of the participant's navigation and answers.
type Progress struct {
	Key                 domain.SessionKey
	Answers             []domain.SessionQuestion // matched by SequenceNo, only UserOptions is read
	ActiveQuestionIndex *int
	SkippedQuestions    []int
}

// SaveProgress merges answers into the stored question list. Progress saves do not move
// the time snapshot; only heartbeats and violations do.
func (s *SessionService) SaveProgress(ctx context.Context, p Progress) error {
	if err := p.Key.Validate(); err != nil {
		return err
	}
	session, err := s.sessions.Find(ctx, p.Key)
	if err != nil {
		return err
	}
	if session.Completed {
		return domain.ErrAlreadyCompleted
	}

	update := domain.SessionUpdate{}
	if p.Answers != nil {
		merged, err := mergeAnswers(session.Questions, p.Answers)
		if err != nil {
			return err
		}
		update.Questions = merged
	}
	if p.ActiveQuestionIndex != nil {
		idx := *p.ActiveQuestionIndex
		if idx < 0 || idx >= len(session.Questions) {
			return domain.Validation("activeQuestionIndex %d out of range", idx)
		}
		update.ActiveQuestionIndex = &idx
	}
	if p.SkippedQuestions != nil {
		skipped, err := normalizeIndexSet(p.SkippedQuestions, len(session.Questions))
		if err != nil {
			return domain.Validation("skippedQuestions: %v", err)
		}
		update.SkippedQuestions = skipped
	}
	return s.sessions.Update(ctx, p.Key, update)
}

func mergeAnswers(stored, answers []domain.SessionQuestion) ([]domain.SessionQuestion, error) {
	merged := domain.CloneQuestions(stored)
	bySequence := make(map[int]int, len(merged))
	for i, q := range merged {
		bySequence[q.SequenceNo] = i
	}
	for _, answer := range answers {
		i, ok := bySequence[answer.SequenceNo]
		if !ok {
			return nil, domain.Validation("question %d is not part of this session", answer.SequenceNo)
		}
		target := merged[i]
		options, err := normalizeIndexSet(answer.UserOptions, len(target.Options))
		if err != nil {
			return nil, domain.Validation("question %d: %v", answer.SequenceNo, err)
		}
		if !target.Multiple && len(options) > 1 {
			return nil, domain.Validation("question %d accepts a single option", answer.SequenceNo)
		}
		merged[i].UserOptions = options
	}
	return merged, nil
}

// normalizeIndexSet de-duplicates indices, keeping first-seen order, and checks each is in [0,size).
func normalizeIndexSet(in []int, size int) ([]int, error) {
	out := make([]int, 0, len(in))
	seen := make(map[int]struct{}, len(in))
	for _, idx := range in {
		if idx < 0 || idx >= size {
			return nil, fmt.Errorf("index %d out of range [0,%d)", idx, size)
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	return out, nil
}
