package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"quizit-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const sessionColumns = `participant_id, quiz_id, questions, remaining_seconds, last_updated,
	completed, active_question_index, skipped_questions, tab_switch_count, created_at`

// SessionStore keeps sessions in quiz_sessions, one row per (participant, quiz). Guarded
// writes carry "completed = FALSE" in their WHERE clause so a single statement both checks
// and mutates.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) Find(ctx context.Context, key domain.SessionKey) (domain.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM quiz_sessions WHERE participant_id=$1 AND quiz_id=$2`,
		key.ParticipantID, key.QuizID)
	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, domain.Internal("find session", err)
	}
	return session, nil
}

func (s *SessionStore) Create(ctx context.Context, session domain.Session) error {
	questions, err := json.Marshal(session.Questions)
	if err != nil {
		return domain.Internal("marshal questions", err)
	}
	skipped := session.SkippedQuestions
	if skipped == nil {
		skipped = []int{}
	}
	skippedJSON, err := json.Marshal(skipped)
	if err != nil {
		return domain.Internal("marshal skipped questions", err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO quiz_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7, $8::jsonb, $9, $10)
		ON CONFLICT (participant_id, quiz_id) DO NOTHING`,
		session.ParticipantID, session.QuizID, string(questions), session.RemainingSeconds,
		session.LastUpdated, session.Completed, session.ActiveQuestionIndex, string(skippedJSON),
		session.TabSwitchCount, session.CreatedAt)
	if err != nil {
		return domain.Internal("create session", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionExists
	}
	return nil
}

func (s *SessionStore) Update(ctx context.Context, key domain.SessionKey, update domain.SessionUpdate) error {
	args := []interface{}{key.ParticipantID, key.QuizID}
	var sets []string
	add := func(column string, value interface{}, cast string) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d%s", column, len(args), cast))
	}

	if update.Questions != nil {
		questions, err := json.Marshal(update.Questions)
		if err != nil {
			return domain.Internal("marshal questions", err)
		}
		add("questions", string(questions), "::jsonb")
	}
	if update.RemainingSeconds != nil {
		add("remaining_seconds", *update.RemainingSeconds, "")
	}
	if update.ActiveQuestionIndex != nil {
		add("active_question_index", *update.ActiveQuestionIndex, "")
	}
	if update.SkippedQuestions != nil {
		skipped, err := json.Marshal(update.SkippedQuestions)
		if err != nil {
			return domain.Internal("marshal skipped questions", err)
		}
		add("skipped_questions", string(skipped), "::jsonb")
	}
	if !update.LastUpdated.IsZero() {
		add("last_updated", update.LastUpdated, "")
	}
	if len(sets) == 0 {
		sets = append(sets, "completed = completed")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE quiz_sessions SET `+strings.Join(sets, ", ")+`
		WHERE participant_id=$1 AND quiz_id=$2 AND completed = FALSE`, args...)
	if err != nil {
		return domain.Internal("update session", err)
	}
	if tag.RowsAffected() == 0 {
		return s.refusal(ctx, key)
	}
	return nil
}

func (s *SessionStore) IncrementTabSwitch(ctx context.Context, key domain.SessionKey, at time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		UPDATE quiz_sessions
		SET tab_switch_count = tab_switch_count + 1, last_updated = $3
		WHERE participant_id=$1 AND quiz_id=$2 AND completed = FALSE
		RETURNING tab_switch_count`,
		key.ParticipantID, key.QuizID, at).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, s.refusal(ctx, key)
	}
	if err != nil {
		return 0, domain.Internal("increment tab switch", err)
	}
	return count, nil
}

func (s *SessionStore) ConditionalComplete(ctx context.Context, key domain.SessionKey, cutoff time.Time) (domain.Session, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE quiz_sessions SET completed = TRUE
		WHERE participant_id=$1 AND quiz_id=$2 AND completed = FALSE
		  AND last_updated + make_interval(secs => remaining_seconds) > $3
		RETURNING `+sessionColumns,
		key.ParticipantID, key.QuizID, cutoff)
	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, domain.ErrAlreadySubmitted
	}
	if err != nil {
		return domain.Session{}, domain.Internal("complete session", err)
	}
	return session, nil
}

func (s *SessionStore) DeleteAllForQuiz(ctx context.Context, quizID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quiz_sessions WHERE quiz_id=$1`, quizID)
	if err != nil {
		return 0, domain.Internal("delete quiz sessions", err)
	}
	return int(tag.RowsAffected()), nil
}

// refusal explains why a guarded write matched no row.
func (s *SessionStore) refusal(ctx context.Context, key domain.SessionKey) error {
	var completed bool
	err := s.pool.QueryRow(ctx,
		`SELECT completed FROM quiz_sessions WHERE participant_id=$1 AND quiz_id=$2`,
		key.ParticipantID, key.QuizID).Scan(&completed)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrSessionNotFound
	case err != nil:
		return domain.Internal("find session", err)
	case completed:
		return domain.ErrAlreadyCompleted
	default:
		return nil
	}
}

func scanSession(row pgx.Row) (domain.Session, error) {
	var (
		s         domain.Session
		questions []byte
		skipped   []byte
	)
	err := row.Scan(&s.ParticipantID, &s.QuizID, &questions, &s.RemainingSeconds, &s.LastUpdated,
		&s.Completed, &s.ActiveQuestionIndex, &skipped, &s.TabSwitchCount, &s.CreatedAt)
	if err != nil {
		return domain.Session{}, err
	}
	if err := json.Unmarshal(questions, &s.Questions); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal questions: %w", err)
	}
	if err := json.Unmarshal(skipped, &s.SkippedQuestions); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal skipped questions: %w", err)
	}
	return s, nil
}
