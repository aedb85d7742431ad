package limiters

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newCounterTest(t *testing.T, window time.Duration) (*FailureCounter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewFailureCounter(rdb, FailureCounterConfig{Window: window}), mr
}

func TestFailureCounterRecordAndReset(t *testing.T) {
	c, mr := newCounterTest(t, time.Minute)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := c.Record(ctx, "u1")
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		if got != want {
			t.Fatalf("expected count %d, got %d", want, got)
		}
	}

	if ttl := mr.TTL("ac:lf:u1"); ttl != time.Minute {
		t.Fatalf("expected window TTL on first failure, got %v", ttl)
	}

	if err := c.Reset(ctx, "u1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	n, err := c.Count(ctx, "u1")
	if err != nil || n != 0 {
		t.Fatalf("expected 0 after reset, got %d err=%v", n, err)
	}
}

func TestFailureCounterWindowExpires(t *testing.T) {
	c, mr := newCounterTest(t, time.Minute)
	ctx := context.Background()

	if _, err := c.Record(ctx, "u1"); err != nil {
		t.Fatalf("record: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	got, err := c.Record(ctx, "u1")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected window to restart at 1, got %d", got)
	}
}

func TestFailureCounterConcurrentRecordsAreDistinct(t *testing.T) {
	c, _ := newCounterTest(t, 0)
	ctx := context.Background()

	const n = 20
	seen := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Record(ctx, "u1")
			if err != nil {
				t.Errorf("record: %v", err)
				return
			}
			seen <- got
		}()
	}
	wg.Wait()
	close(seen)

	counts := map[int]bool{}
	for v := range seen {
		if counts[v] {
			t.Fatalf("count %d observed twice", v)
		}
		counts[v] = true
	}
	if len(counts) != n {
		t.Fatalf("expected %d distinct counts, got %d", n, len(counts))
	}
}

func TestFailureCounterNilSafe(t *testing.T) {
	var c *FailureCounter
	if n, err := c.Record(context.Background(), "u1"); n != 0 || err != nil {
		t.Fatalf("nil counter should be a no-op, got %d %v", n, err)
	}
	if err := c.Reset(context.Background(), "u1"); err != nil {
		t.Fatalf("nil reset: %v", err)
	}
}

func TestFailureCounterUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	c := NewFailureCounter(rdb, FailureCounterConfig{})
	mr.Close()

	_, err = c.Record(context.Background(), "u1")
	if !errors.Is(err, ErrCounterUnavailable) {
		t.Fatalf("expected ErrCounterUnavailable, got %v", err)
	}
}
