package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr
}

func TestLoginBudget(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxLoginAttempts: 3, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.IncrementLogin(ctx, "Alice@example.com", ""); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if err := l.CheckLogin(ctx, "alice@example.com", ""); err != nil {
		t.Fatalf("expected budget to remain, got %v", err)
	}
	if err := l.IncrementLogin(ctx, "alice@example.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on third failure, got %v", err)
	}
	if err := l.CheckLogin(ctx, "alice@example.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected CheckLogin to deny, got %v", err)
	}

	if n, _ := l.LoginAttempts(ctx, "alice@example.com"); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.CheckLogin(ctx, "alice@example.com", ""); err != nil {
		t.Fatalf("expected window to reset, got %v", err)
	}
}

func TestResetLoginClearsIdentifierOnly(t *testing.T) {
	l, _ := newTestLimiter(t, Config{EnableIPThrottle: true, MaxLoginAttempts: 2, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "bob@example.com", "10.0.0.1")
	_ = l.IncrementLogin(ctx, "carol@example.com", "10.0.0.1")

	if err := l.CheckLogin(ctx, "dave@example.com", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP budget to be exhausted, got %v", err)
	}
	if err := l.ResetLogin(ctx, "bob@example.com"); err != nil {
		t.Fatalf("ResetLogin: %v", err)
	}
	if n, _ := l.LoginAttempts(ctx, "bob@example.com"); n != 0 {
		t.Fatalf("expected identifier counter cleared, got %d", n)
	}
	if err := l.CheckLogin(ctx, "dave@example.com", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP counter to survive reset, got %v", err)
	}
}

func TestRefreshThrottle(t *testing.T) {
	l, _ := newTestLimiter(t, Config{EnableRefreshThrottle: true, MaxRefreshAttempts: 2, RefreshCooldownDuration: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckRefresh(ctx, "fam"); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}
	if err := l.CheckRefresh(ctx, "fam"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckRefresh(ctx, "other"); err != nil {
		t.Fatalf("expected separate family budget, got %v", err)
	}
}

func TestRedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxLoginAttempts: 3, LoginCooldownDuration: time.Minute})
	mr.Close()

	if err := l.CheckLogin(context.Background(), "a@example.com", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
