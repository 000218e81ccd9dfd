package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"quizit-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Session hash fields.
const (
	fieldParticipantID = "participant_id"
	fieldQuizID        = "quiz_id"
	fieldQuestions     = "questions"
	fieldRemaining     = "remaining_seconds"
	fieldLastUpdated   = "last_updated_ms"
	fieldCompleted     = "completed"
	fieldActiveIndex   = "active_question_index"
	fieldSkipped       = "skipped_questions"
	fieldTabSwitches   = "tab_switch_count"
	fieldCreatedAt     = "created_at_ms"
)

// Script status codes.
const (
	statusMissing   = -1
	statusCompleted = -2
)

// KEYS[1] session hash, KEYS[2] quiz index set.
// ARGV[1] index member, ARGV[2] ttl in ms (0 keeps forever), ARGV[3..] field/value pairs.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 3))
local ttl = tonumber(ARGV[2])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
end
redis.call('SADD', KEYS[2], ARGV[1])
return 1
`)

// KEYS[1] session hash. ARGV field/value pairs.
var updateScript = redis.NewScript(`
local completed = redis.call('HGET', KEYS[1], 'completed')
if not completed then
  return -1
end
if completed == '1' then
  return -2
end
if #ARGV > 0 then
  redis.call('HSET', KEYS[1], unpack(ARGV))
end
return 1
`)

// KEYS[1] session hash. ARGV[1] timestamp in ms.
var incrementScript = redis.NewScript(`
local completed = redis.call('HGET', KEYS[1], 'completed')
if not completed then
  return -1
end
if completed == '1' then
  return -2
end
local n = redis.call('HINCRBY', KEYS[1], 'tab_switch_count', 1)
redis.call('HSET', KEYS[1], 'last_updated_ms', ARGV[1])
return n
`)

// KEYS[1] session hash. ARGV[1] cutoff in ms. Returns 0 when the session is missing,
// completed or expired at cutoff, otherwise the completed hash. A completed session is
// persisted: the ttl only bounds abandoned attempts.
var completeScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'completed', 'last_updated_ms', 'remaining_seconds')
if not v[1] or v[1] == '1' then
  return 0
end
local deadline = tonumber(v[2]) + tonumber(v[3]) * 1000
if deadline <= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'completed', '1')
redis.call('PERSIST', KEYS[1])
return redis.call('HGETALL', KEYS[1])
`)

// SessionStore keeps one hash per session and an index set per quiz. Every mutation is a
// single Lua script, so a check and its write cannot interleave with another instance.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore builds the store. A positive ttl bounds how long abandoned sessions linger.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Find(ctx context.Context, key domain.SessionKey) (domain.Session, error) {
	fields, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return domain.Session{}, domain.Internal("redis: find session", err)
	}
	if len(fields) == 0 {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return decodeSession(fields)
}

func (s *SessionStore) Create(ctx context.Context, session domain.Session) error {
	pairs, err := encodeSession(session)
	if err != nil {
		return err
	}
	key := session.Key()
	args := append([]interface{}{key.ParticipantID, s.ttl.Milliseconds()}, pairs...)
	created, err := createScript.Run(ctx, s.client, []string{s.key(key), s.indexKey(key.QuizID)}, args...).Int64()
	if err != nil {
		return domain.Internal("redis: create session", err)
	}
	if created == 0 {
		return domain.ErrSessionExists
	}
	return nil
}

func (s *SessionStore) Update(ctx context.Context, key domain.SessionKey, update domain.SessionUpdate) error {
	pairs, err := encodeUpdate(update)
	if err != nil {
		return err
	}
	status, err := updateScript.Run(ctx, s.client, []string{s.key(key)}, pairs...).Int64()
	if err != nil {
		return domain.Internal("redis: update session", err)
	}
	return statusErr(status)
}

func (s *SessionStore) IncrementTabSwitch(ctx context.Context, key domain.SessionKey, at time.Time) (int, error) {
	n, err := incrementScript.Run(ctx, s.client, []string{s.key(key)}, at.UnixMilli()).Int64()
	if err != nil {
		return 0, domain.Internal("redis: increment tab switch", err)
	}
	if err := statusErr(n); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SessionStore) ConditionalComplete(ctx context.Context, key domain.SessionKey, cutoff time.Time) (domain.Session, error) {
	res, err := completeScript.Run(ctx, s.client, []string{s.key(key)}, cutoff.UnixMilli()).Result()
	if err != nil {
		return domain.Session{}, domain.Internal("redis: complete session", err)
	}
	flat, ok := res.([]interface{})
	if !ok {
		return domain.Session{}, domain.ErrAlreadySubmitted
	}
	fields := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		fields[fmt.Sprint(flat[i])] = fmt.Sprint(flat[i+1])
	}
	return decodeSession(fields)
}

func (s *SessionStore) DeleteAllForQuiz(ctx context.Context, quizID string) (int, error) {
	members, err := s.client.SMembers(ctx, s.indexKey(quizID)).Result()
	if err != nil {
		return 0, domain.Internal("redis: list quiz sessions", err)
	}
	keys := make([]string, 0, len(members))
	for _, participantID := range members {
		keys = append(keys, s.key(domain.SessionKey{ParticipantID: participantID, QuizID: quizID}))
	}

	var removed *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			removed = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, s.indexKey(quizID))
		return nil
	})
	if err != nil {
		return 0, domain.Internal("redis: delete quiz sessions", err)
	}
	if removed == nil {
		return 0, nil
	}
	return int(removed.Val()), nil
}

func (s *SessionStore) key(key domain.SessionKey) string {
	return "quiz:" + key.QuizID + ":session:" + key.ParticipantID
}

func (s *SessionStore) indexKey(quizID string) string {
	return "quiz:" + quizID + ":sessions"
}

func statusErr(status int64) error {
	switch status {
	case statusMissing:
		return domain.ErrSessionNotFound
	case statusCompleted:
		return domain.ErrAlreadyCompleted
	default:
		return nil
	}
}

func encodeSession(s domain.Session) ([]interface{}, error) {
	questions, err := json.Marshal(s.Questions)
	if err != nil {
		return nil, domain.Internal("redis: encode questions", err)
	}
	skipped := s.SkippedQuestions
	if skipped == nil {
		skipped = []int{}
	}
	skippedJSON, err := json.Marshal(skipped)
	if err != nil {
		return nil, domain.Internal("redis: encode skipped questions", err)
	}
	return []interface{}{
		fieldParticipantID, s.ParticipantID,
		fieldQuizID, s.QuizID,
		fieldQuestions, string(questions),
		fieldRemaining, s.RemainingSeconds,
		fieldLastUpdated, s.LastUpdated.UnixMilli(),
		fieldCompleted, boolFlag(s.Completed),
		fieldActiveIndex, s.ActiveQuestionIndex,
		fieldSkipped, string(skippedJSON),
		fieldTabSwitches, s.TabSwitchCount,
		fieldCreatedAt, s.CreatedAt.UnixMilli(),
	}, nil
}

func encodeUpdate(u domain.SessionUpdate) ([]interface{}, error) {
	var pairs []interface{}
	if u.Questions != nil {
		questions, err := json.Marshal(u.Questions)
		if err != nil {
			return nil, domain.Internal("redis: encode questions", err)
		}
		pairs = append(pairs, fieldQuestions, string(questions))
	}
	if u.RemainingSeconds != nil {
		pairs = append(pairs, fieldRemaining, *u.RemainingSeconds)
	}
	if u.ActiveQuestionIndex != nil {
		pairs = append(pairs, fieldActiveIndex, *u.ActiveQuestionIndex)
	}
	if u.SkippedQuestions != nil {
		skipped, err := json.Marshal(u.SkippedQuestions)
		if err != nil {
			return nil, domain.Internal("redis: encode skipped questions", err)
		}
		pairs = append(pairs, fieldSkipped, string(skipped))
	}
	if !u.LastUpdated.IsZero() {
		pairs = append(pairs, fieldLastUpdated, u.LastUpdated.UnixMilli())
	}
	return pairs, nil
}

func decodeSession(fields map[string]string) (domain.Session, error) {
	s := domain.Session{
		ParticipantID: fields[fieldParticipantID],
		QuizID:        fields[fieldQuizID],
		Completed:     fields[fieldCompleted] == "1",
	}
	if raw := fields[fieldQuestions]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.Questions); err != nil {
			return domain.Session{}, domain.Internal("redis: decode questions", err)
		}
	}
	if raw := fields[fieldSkipped]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.SkippedQuestions); err != nil {
			return domain.Session{}, domain.Internal("redis: decode skipped questions", err)
		}
	}

	var err error
	if s.RemainingSeconds, err = intField(fields, fieldRemaining); err != nil {
		return domain.Session{}, err
	}
	if s.ActiveQuestionIndex, err = intField(fields, fieldActiveIndex); err != nil {
		return domain.Session{}, err
	}
	if s.TabSwitchCount, err = intField(fields, fieldTabSwitches); err != nil {
		return domain.Session{}, err
	}
	lastUpdated, err := intField(fields, fieldLastUpdated)
	if err != nil {
		return domain.Session{}, err
	}
	createdAt, err := intField(fields, fieldCreatedAt)
	if err != nil {
		return domain.Session{}, err
	}
	s.LastUpdated = time.UnixMilli(int64(lastUpdated))
	s.CreatedAt = time.UnixMilli(int64(createdAt))
	return s, nil
}

func intField(fields map[string]string, name string) (int, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.Internal("redis: decode "+name, err)
	}
	return int(v), nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
