package stores

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func TestOAuthStateSaveConsumeOnce(t *testing.T) {
	rdb, mr := newTestRedis(t)
	s := NewOAuthStateStore(rdb, "")
	ctx := context.Background()

	if err := s.Save(ctx, "abc", OAuthState{Provider: "github", IssuedAt: time.Now()}, 10*time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !mr.Exists("oauth_state:abc") {
		t.Fatal("expected oauth_state:abc key")
	}
	if ttl := mr.TTL("oauth_state:abc"); ttl != 10*time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	got, err := s.Consume(ctx, "abc")
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if got.Provider != "github" {
		t.Fatalf("unexpected provider %q", got.Provider)
	}
	if _, err := s.Consume(ctx, "abc"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected second consume to fail, got %v", err)
	}
}

func TestOAuthStateExpires(t *testing.T) {
	rdb, mr := newTestRedis(t)
	s := NewOAuthStateStore(rdb, "")
	ctx := context.Background()

	_ = s.Save(ctx, "abc", OAuthState{Provider: "github"}, 10*time.Minute)
	mr.FastForward(10*time.Minute + time.Second)

	if _, err := s.Consume(ctx, "abc"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected expired state to be missing, got %v", err)
	}
}

func TestOAuthStateCollisionRejected(t *testing.T) {
	rdb, _ := newTestRedis(t)
	s := NewOAuthStateStore(rdb, "")
	ctx := context.Background()

	_ = s.Save(ctx, "abc", OAuthState{Provider: "github"}, time.Minute)
	if err := s.Save(ctx, "abc", OAuthState{Provider: "evil"}, time.Minute); !errors.Is(err, ErrStateExists) {
		t.Fatalf("expected ErrStateExists, got %v", err)
	}
}

func TestOAuthStateConcurrentConsumeSingleWinner(t *testing.T) {
	rdb, _ := newTestRedis(t)
	s := NewOAuthStateStore(rdb, "")
	ctx := context.Background()
	_ = s.Save(ctx, "race", OAuthState{Provider: "github"}, time.Minute)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Consume(ctx, "race"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected one winner, got %d", wins.Load())
	}
}

func TestOAuthStateRedisDown(t *testing.T) {
	rdb, mr := newTestRedis(t)
	s := NewOAuthStateStore(rdb, "")
	mr.Close()

	if _, err := s.Consume(context.Background(), "abc"); !errors.Is(err, ErrStateRedisUnavailable) {
		t.Fatalf("expected ErrStateRedisUnavailable, got %v", err)
	}
}
