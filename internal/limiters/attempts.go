package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxAttempts = 5
	defaultCooldown    = time.Minute
)

// ErrTooManyAttempts is returned by Check while an account is cooling down.
var ErrTooManyAttempts = errors.New("too many second-factor attempts")

// AttemptLimiterConfig bounds second-factor guesses per account.
type AttemptLimiterConfig struct {
	Prefix      string
	MaxAttempts int           // 0 = 5
	Cooldown    time.Duration // 0 = 1m, measured from the first failure
}

// AttemptLimiter caps wrong TOTP and backup codes per account. The counter is
// independent of the password lockout counter.
type AttemptLimiter struct {
	redis       redis.UniversalClient
	prefix      string
	maxAttempts int64
	cooldown    time.Duration
}

// NewAttemptLimiter creates a limiter. An empty prefix uses "ac".
func NewAttemptLimiter(redisClient redis.UniversalClient, cfg AttemptLimiterConfig) *AttemptLimiter {
	l := &AttemptLimiter{
		redis:       redisClient,
		prefix:      cfg.Prefix,
		maxAttempts: int64(cfg.MaxAttempts),
		cooldown:    cfg.Cooldown,
	}
	if l.prefix == "" {
		l.prefix = "ac"
	}
	if l.maxAttempts <= 0 {
		l.maxAttempts = defaultMaxAttempts
	}
	if l.cooldown <= 0 {
		l.cooldown = defaultCooldown
	}
	return l
}

func (l *AttemptLimiter) key(userID string) string {
	return l.prefix + ":tf:" + userID
}

// Check returns ErrTooManyAttempts once MaxAttempts failures were recorded inside
// the cooldown.
func (l *AttemptLimiter) Check(ctx context.Context, userID string) error {
	if l == nil || userID == "" {
		return nil
	}

	count, err := l.redis.Get(ctx, l.key(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}
	if count >= l.maxAttempts {
		return ErrTooManyAttempts
	}
	return nil
}

// RecordFailure counts one wrong code. The cooldown starts at the first failure.
func (l *AttemptLimiter) RecordFailure(ctx context.Context, userID string) error {
	if l == nil || userID == "" {
		return nil
	}

	count, err := l.redis.Incr(ctx, l.key(userID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(userID), l.cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
		}
	}
	return nil
}

// Reset clears the counter after an accepted code.
func (l *AttemptLimiter) Reset(ctx context.Context, userID string) error {
	if l == nil || userID == "" {
		return nil
	}

	if err := l.redis.Del(ctx, l.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}
	return nil
}
