package redis

import (
	"context"
	"encoding/json"

	"quizit-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SubmissionStore keeps submissions in a hash per quiz (field = participant ID, value = JSON)
// and a sorted set scored by submission time for paging:
//
//	HSET quiz:{quizID}:submissions {participantID} {json}
//	ZADD quiz:{quizID}:submissions:order {submittedAtMs} {participantID}
type SubmissionStore struct {
	client *redis.Client
}

func NewSubmissionStore(client *redis.Client) *SubmissionStore {
	return &SubmissionStore{client: client}
}

func (s *SubmissionStore) Upsert(ctx context.Context, submission domain.Submission) error {
	payload, err := json.Marshal(submission)
	if err != nil {
		return domain.Internal("redis: encode submission", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.hashKey(submission.QuizID), submission.ParticipantID, payload)
		pipe.ZAdd(ctx, s.orderKey(submission.QuizID), redis.Z{
			Score:  float64(submission.SubmittedAt.UnixMilli()),
			Member: submission.ParticipantID,
		})
		return nil
	})
	if err != nil {
		return domain.Internal("redis: upsert submission", err)
	}
	return nil
}

func (s *SubmissionStore) Find(ctx context.Context, key domain.SessionKey) (domain.Submission, error) {
	payload, err := s.client.HGet(ctx, s.hashKey(key.QuizID), key.ParticipantID).Bytes()
	if isMiss(err) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.Submission{}, domain.Internal("redis: find submission", err)
	}
	return decodeSubmission(payload)
}

func (s *SubmissionStore) List(ctx context.Context, quizID string, page domain.Page) ([]domain.Submission, int, error) {
	page = page.Normalize()
	start := int64(page.Offset())
	stop := start + int64(page.Size) - 1

	var (
		total *redis.IntCmd
		ids   *redis.StringSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		total = pipe.ZCard(ctx, s.orderKey(quizID))
		ids = pipe.ZRange(ctx, s.orderKey(quizID), start, stop)
		return nil
	})
	if err != nil {
		return nil, 0, domain.Internal("redis: list submissions", err)
	}
	if len(ids.Val()) == 0 {
		return []domain.Submission{}, int(total.Val()), nil
	}

	values, err := s.client.HMGet(ctx, s.hashKey(quizID), ids.Val()...).Result()
	if err != nil {
		return nil, 0, domain.Internal("redis: load submissions", err)
	}
	out := make([]domain.Submission, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// deleted between the two reads
			continue
		}
		submission, err := decodeSubmission([]byte(raw))
		if err != nil {
			return nil, 0, err
		}
		out = append(out, submission)
	}
	return out, int(total.Val()), nil
}

func (s *SubmissionStore) DeleteAllForQuiz(ctx context.Context, quizID string) (int, error) {
	var count *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.HLen(ctx, s.hashKey(quizID))
		pipe.Del(ctx, s.hashKey(quizID), s.orderKey(quizID))
		return nil
	})
	if err != nil {
		return 0, domain.Internal("redis: delete submissions", err)
	}
	return int(count.Val()), nil
}

func (s *SubmissionStore) hashKey(quizID string) string {
	return "quiz:" + quizID + ":submissions"
}

func (s *SubmissionStore) orderKey(quizID string) string {
	return "quiz:" + quizID + ":submissions:order"
}

func decodeSubmission(payload []byte) (domain.Submission, error) {
	var submission domain.Submission
	if err := json.Unmarshal(payload, &submission); err != nil {
		return domain.Submission{}, domain.Internal("redis: decode submission", err)
	}
	return submission, nil
}
