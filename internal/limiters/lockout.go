package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCounterUnavailable indicates the failure counter backend is unreachable.
	ErrCounterUnavailable = errors.New("failure counter backend unavailable")
)

// FailureCounterConfig controls the rolling window of a FailureCounter.
type FailureCounterConfig struct {
	Prefix string
	Window time.Duration // 0 = counter never expires on its own
}

// FailureCounter counts consecutive failed logins per account below the lockout
// threshold. INCR makes concurrent attempts against one account serialize, so
// two racing failures never both observe the same count.
type FailureCounter struct {
	redis  redis.UniversalClient
	config FailureCounterConfig
}

// NewFailureCounter creates a counter. An empty prefix uses "ac".
func NewFailureCounter(redisClient redis.UniversalClient, cfg FailureCounterConfig) *FailureCounter {
	if cfg.Prefix == "" {
		cfg.Prefix = "ac"
	}
	return &FailureCounter{redis: redisClient, config: cfg}
}

func (c *FailureCounter) key(userID string) string {
	return c.config.Prefix + ":lf:" + userID
}

// Record increments the counter and returns the post-increment count.
func (c *FailureCounter) Record(ctx context.Context, userID string) (int, error) {
	if c == nil || userID == "" {
		return 0, nil
	}

	count, err := c.redis.Incr(ctx, c.key(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}

	if count == 1 && c.config.Window > 0 {
		// Window starts at the first failure.
		if err := c.redis.Expire(ctx, c.key(userID), c.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
		}
	}

	return int(count), nil
}

// Reset clears the counter (successful login, unlock, lapsed lock).
func (c *FailureCounter) Reset(ctx context.Context, userID string) error {
	if c == nil || userID == "" {
		return nil
	}

	if err := c.redis.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}
	return nil
}

// Count returns the current count without modifying it.
func (c *FailureCounter) Count(ctx context.Context, userID string) (int, error) {
	if c == nil || userID == "" {
		return 0, nil
	}

	count, err := c.redis.Get(ctx, c.key(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}
	return int(count), nil
}
