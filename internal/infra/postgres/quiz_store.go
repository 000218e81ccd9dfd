package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"quizit-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuizStore keeps quiz definitions as JSONB in the quizzes table. It serves both as the
// cache loader and as the authoring catalog.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, domain.Internal("load quiz", err)
	}
	return decodeQuiz(raw)
}

func (s *QuizStore) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return domain.Internal("marshal quiz", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO quizzes (id, name, data, created_at)
		VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, data = EXCLUDED.data`,
		quiz.ID, quiz.Name, string(data), quiz.CreatedAt)
	if err != nil {
		return domain.Internal("save quiz", err)
	}
	return nil
}

func (s *QuizStore) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM quizzes ORDER BY created_at, id`)
	if err != nil {
		return nil, domain.Internal("list quizzes", err)
	}
	defer rows.Close()

	out := []domain.QuizSummary{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, domain.Internal("scan quiz", err)
		}
		quiz, err := decodeQuiz(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, quiz.Summary())
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal("list quizzes", err)
	}
	return out, nil
}

func (s *QuizStore) DeleteQuiz(ctx context.Context, quizID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quizzes WHERE id=$1`, quizID)
	if err != nil {
		return domain.Internal("delete quiz", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func decodeQuiz(raw []byte) (domain.Quiz, error) {
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, domain.Internal("unmarshal quiz", err)
	}
	return quiz, nil
}
