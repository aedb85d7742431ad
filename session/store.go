package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when a session does not exist or belongs to another user.
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned when an operation targets an expired session.
	ErrExpired = errors.New("session expired")
	// ErrRedisUnavailable wraps transport failures from the Redis store.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidTTL is returned by Save for non-positive lifetimes.
	ErrInvalidTTL = errors.New("session ttl must be > 0")
	// ErrTokenGeneration wraps refresh token generator failures in Manager.Issue.
	ErrTokenGeneration = errors.New("refresh token generation failed")
)

// Repository persists sessions. Implementations must be safe for concurrent use.
type Repository interface {
	Save(ctx context.Context, sess *Session, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	FindByUserID(ctx context.Context, userID string) ([]*Session, error)
	Delete(ctx context.Context, userID, sessionID string) error
}

var _ Repository = (*Store)(nil)

// saveSessionScript writes the blob and adds it to the user index. The index TTL is
// only ever extended so a short session cannot hide a longer one.
const saveSessionScript = `
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("SADD", KEYS[2], ARGV[3])
local current = redis.call("PTTL", KEYS[2])
if current < tonumber(ARGV[2]) then
  redis.call("PEXPIRE", KEYS[2], ARGV[2])
end
return 1
`

var saveSessionLua = redis.NewScript(saveSessionScript)

// Store is a Redis-backed Repository.
//
// Layout:
//
//	<prefix>:s:<sessionID>  binary session blob with TTL
//	<prefix>:u:<userID>     set of session IDs
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a Store. An empty prefix uses "ac".
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "ac"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Save writes sess with the given lifetime and indexes it under its user.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if sess == nil || sess.ID == "" || sess.UserID == "" {
		return errors.New("session id and user id are required")
	}
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	ms := ttl.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	err = saveSessionLua.Run(ctx, s.redis,
		[]string{s.key(sess.ID), s.userKey(sess.UserID)},
		data, ms, sess.ID,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get loads a session by ID.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.ID = sessionID
	return sess, nil
}

// FindByUserID returns every stored session indexed under userID. Index entries
// whose blob has already been evicted are skipped. It never writes.
func (s *Store) FindByUserID(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return []*Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, sid := range ids {
		cmds[i] = pipe.Get(ctx, s.key(sid))
	}
	_, err = pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessions := make([]*Session, 0, len(ids))
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		sess, decErr := Decode(data)
		if decErr != nil {
			return nil, decErr
		}
		sess.ID = ids[i]
		if sess.UserID != userID {
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// Delete removes a session and its index entry. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, userID, sessionID string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sessionID))
		pipe.SRem(ctx, s.userKey(userID), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping measures the Redis round-trip.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
