package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var testPolicies = map[string]RateLimitPolicy{
	GroupWrite: {Limit: 3, Window: time.Minute},
	GroupAuth:  {Limit: 1, Window: 10 * time.Minute},
}

func setupTestRateLimiter(t *testing.T) (*RateLimiter, *clockwork.FakeClock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	limiter := NewRateLimiter(NewFromClient(rdb, "console:", zap.NewNop()), zap.NewNop(),
		RateLimitPolicy{Limit: 5, Window: time.Minute}, testPolicies).WithClock(clock)

	return limiter, clock, mr
}

func TestRateLimiter_PolicyPerGroup(t *testing.T) {
	limiter, _, _ := setupTestRateLimiter(t)

	tests := []struct {
		group string
		limit int
	}{
		{GroupRead, 5},
		{GroupWrite, 3},
		{GroupAuth, 1},
		{"unlisted", 5},
	}

	for _, tt := range tests {
		if got := limiter.Policy(tt.group).Limit; got != tt.limit {
			t.Errorf("Policy(%q).Limit = %d, want %d", tt.group, got, tt.limit)
		}
	}
}

func TestRateLimiter_CountsDownThenBlocks(t *testing.T) {
	limiter, _, _ := setupTestRateLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, GroupWrite, "op:ada@example.com")
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if result.Remaining != 2-i {
			t.Errorf("request %d: expected remaining %d, got %d", i, 2-i, result.Remaining)
		}
	}

	result, err := limiter.Allow(ctx, GroupWrite, "op:ada@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Allowed {
		t.Fatal("fourth write should be blocked")
	}
	if result.Remaining != 0 || result.Limit != 3 || result.Group != GroupWrite {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestRateLimiter_GroupsAndSubjectsAreIndependent(t *testing.T) {
	limiter, _, mr := setupTestRateLimiter(t)
	ctx := context.Background()

	if r, _ := limiter.Allow(ctx, GroupAuth, "ip:10.0.0.1"); !r.Allowed {
		t.Fatal("first sign-in attempt should pass")
	}
	if r, _ := limiter.Allow(ctx, GroupAuth, "ip:10.0.0.1"); r.Allowed {
		t.Fatal("second sign-in attempt should be limited")
	}

	if r, _ := limiter.Allow(ctx, GroupRead, "ip:10.0.0.1"); !r.Allowed {
		t.Error("reads have their own budget")
	}
	if r, _ := limiter.Allow(ctx, GroupAuth, "ip:10.0.0.2"); !r.Allowed {
		t.Error("another client has its own budget")
	}

	if !mr.Exists("console:ratelimit:auth:ip:10.0.0.1") {
		t.Errorf("expected prefixed window key, have %v", mr.Keys())
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	limiter, clock, _ := setupTestRateLimiter(t)
	ctx := context.Background()
	subject := "op:ada@example.com"

	first := clock.Now()
	limiter.Allow(ctx, GroupWrite, subject)
	clock.Advance(20 * time.Second)
	limiter.Allow(ctx, GroupWrite, subject)
	limiter.Allow(ctx, GroupWrite, subject)

	blocked, _ := limiter.Allow(ctx, GroupWrite, subject)
	if blocked.Allowed {
		t.Fatal("budget should be spent")
	}
	if want := first.Add(time.Minute); !blocked.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v", blocked.ResetAt, want)
	}

	// the first request leaves the window, the other two stay
	clock.Advance(41 * time.Second)
	result, err := limiter.Allow(ctx, GroupWrite, subject)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Allowed {
		t.Fatal("a slot should have freed")
	}
	if result.Remaining != 0 {
		t.Errorf("expected remaining 0, got %d", result.Remaining)
	}
}

func TestRateLimiter_ConcurrentRequestsNeverOvershoot(t *testing.T) {
	limiter, _, _ := setupTestRateLimiter(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := limiter.Allow(ctx, GroupWrite, "op:ada@example.com")
			if err != nil {
				t.Errorf("allow failed: %v", err)
				return
			}
			if r.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 3 {
		t.Errorf("expected exactly 3 allowed, got %d", allowed)
	}
}
