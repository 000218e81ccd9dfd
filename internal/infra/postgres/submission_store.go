package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"quizit-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const submissionColumns = `id, participant_id, quiz_id, questions, participant, submitted_at,
	time_consumed, time_consumed_seconds, tab_switch_count, submit_trigger`

// SubmissionStore keeps one row per (participant, quiz) in quiz_submissions.
type SubmissionStore struct {
	pool *pgxpool.Pool
}

func NewSubmissionStore(pool *pgxpool.Pool) *SubmissionStore {
	return &SubmissionStore{pool: pool}
}

func (s *SubmissionStore) Upsert(ctx context.Context, submission domain.Submission) error {
	questions, err := json.Marshal(submission.Questions)
	if err != nil {
		return domain.Internal("marshal questions", err)
	}
	participant, err := json.Marshal(submission.Participant)
	if err != nil {
		return domain.Internal("marshal participant", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO quiz_submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7, $8, $9, $10)
		ON CONFLICT (participant_id, quiz_id) DO UPDATE SET
			id = EXCLUDED.id,
			questions = EXCLUDED.questions,
			participant = EXCLUDED.participant,
			submitted_at = EXCLUDED.submitted_at,
			time_consumed = EXCLUDED.time_consumed,
			time_consumed_seconds = EXCLUDED.time_consumed_seconds,
			tab_switch_count = EXCLUDED.tab_switch_count,
			submit_trigger = EXCLUDED.submit_trigger`,
		submission.ID, submission.ParticipantID, submission.QuizID, string(questions), string(participant),
		submission.SubmittedAt, submission.TimeConsumed, submission.TimeConsumedSeconds,
		submission.TabSwitchCount, string(submission.Trigger))
	if err != nil {
		return domain.Internal("upsert submission", err)
	}
	return nil
}

func (s *SubmissionStore) Find(ctx context.Context, key domain.SessionKey) (domain.Submission, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM quiz_submissions WHERE participant_id=$1 AND quiz_id=$2`,
		key.ParticipantID, key.QuizID)
	submission, err := scanSubmission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.Submission{}, domain.Internal("find submission", err)
	}
	return submission, nil
}

// List reads the count and the page in one read-only snapshot so they agree.
func (s *SubmissionStore) List(ctx context.Context, quizID string, page domain.Page) ([]domain.Submission, int, error) {
	page = page.Normalize()
	var (
		total int
		out   = []domain.Submission{}
	)
	err := s.pool.BeginTxFunc(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM quiz_submissions WHERE quiz_id=$1`, quizID).Scan(&total); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `
			SELECT `+submissionColumns+` FROM quiz_submissions
			WHERE quiz_id=$1
			ORDER BY submitted_at, participant_id
			LIMIT $2 OFFSET $3`,
			quizID, page.Size, page.Offset())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			submission, err := scanSubmission(rows)
			if err != nil {
				return err
			}
			out = append(out, submission)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, domain.Internal("list submissions", err)
	}
	return out, total, nil
}

func (s *SubmissionStore) DeleteAllForQuiz(ctx context.Context, quizID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quiz_submissions WHERE quiz_id=$1`, quizID)
	if err != nil {
		return 0, domain.Internal("delete submissions", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanSubmission(row pgx.Row) (domain.Submission, error) {
	var (
		sub         domain.Submission
		questions   []byte
		participant []byte
		trigger     string
	)
	err := row.Scan(&sub.ID, &sub.ParticipantID, &sub.QuizID, &questions, &participant, &sub.SubmittedAt,
		&sub.TimeConsumed, &sub.TimeConsumedSeconds, &sub.TabSwitchCount, &trigger)
	if err != nil {
		return domain.Submission{}, err
	}
	if err := json.Unmarshal(questions, &sub.Questions); err != nil {
		return domain.Submission{}, fmt.Errorf("unmarshal questions: %w", err)
	}
	if err := json.Unmarshal(participant, &sub.Participant); err != nil {
		return domain.Submission{}, fmt.Errorf("unmarshal participant: %w", err)
	}
	sub.Trigger = domain.SubmitTrigger(trigger)
	return sub, nil
}
