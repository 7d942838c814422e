package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrStateNotFound         = errors.New("oauth state not found")
	ErrStateExists           = errors.New("oauth state already exists")
	ErrStateRedisUnavailable = errors.New("oauth state redis unavailable")
)

// OAuthState is the payload stored under a state value between the
// authorization redirect and the callback.
type OAuthState struct {
	Provider string    `json:"provider"`
	IssuedAt time.Time `json:"issued_at"`
}

// OAuthStateStore keeps single-use OAuth state values in Redis.
type OAuthStateStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewOAuthStateStore(redisClient redis.UniversalClient, prefix string) *OAuthStateStore {
	if prefix == "" {
		prefix = "oauth_state"
	}
	return &OAuthStateStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *OAuthStateStore) key(state string) string {
	return s.prefix + ":" + state
}

// Save stores state with ttl. A colliding value is rejected rather than
// overwritten.
func (s *OAuthStateStore) Save(ctx context.Context, state string, data OAuthState, ttl time.Duration) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	ok, err := s.redis.SetNX(ctx, s.key(state), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStateRedisUnavailable, err)
	}
	if !ok {
		return ErrStateExists
	}
	return nil
}

// Consume atomically reads and deletes state. Missing, expired and already
// consumed values all yield ErrStateNotFound.
func (s *OAuthStateStore) Consume(ctx context.Context, state string) (OAuthState, error) {
	if state == "" {
		return OAuthState{}, ErrStateNotFound
	}
	raw, err := s.redis.GetDel(ctx, s.key(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return OAuthState{}, ErrStateNotFound
		}
		return OAuthState{}, fmt.Errorf("%w: %v", ErrStateRedisUnavailable, err)
	}

	var data OAuthState
	if err := json.Unmarshal(raw, &data); err != nil {
		return OAuthState{}, ErrStateNotFound
	}
	return data, nil
}
