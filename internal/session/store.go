// Package session holds the per-browser client state of the portal and the
// admin session context built on top of it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Persisted keys. They are cleared together on logout or failed refresh.
const (
	KeyAuthToken    = "authToken"
	KeyRefreshToken = "refreshToken"
	KeyAuthUser     = "authUser"
)

// AuthKeys lists the keys removed by ClearAuth.
var AuthKeys = []string{KeyAuthToken, KeyRefreshToken, KeyAuthUser}

// Store is a small key/value storage scoped to one browser session. Get
// returns "" for missing keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
}

// ClearAuth removes the three auth keys from store.
func ClearAuth(ctx context.Context, store Store) error {
	return store.Remove(ctx, AuthKeys...)
}

// RedisStore keeps one hash per browser session. Every write slides the TTL.
type RedisStore struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// NewRedisStore returns the store of browser session sid.
func NewRedisStore(client redis.Cmdable, sid string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, key: "wafi:session:" + sid, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.HGet(ctx, s.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session get %s: %w", key, err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key, key, value)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.key, keys...).Err(); err != nil {
		return fmt.Errorf("session remove: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store used by the command-line console.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

// Tokens exposes a Store as the token store used by the backend client.
type Tokens struct {
	Store Store
}

func (t Tokens) AccessToken(ctx context.Context) (string, error) {
	return t.Store.Get(ctx, KeyAuthToken)
}

func (t Tokens) RefreshToken(ctx context.Context) (string, error) {
	return t.Store.Get(ctx, KeyRefreshToken)
}

func (t Tokens) SetAccessToken(ctx context.Context, token string) error {
	return t.Store.Set(ctx, KeyAuthToken, token)
}

func (t Tokens) ClearAuth(ctx context.Context) error {
	return ClearAuth(ctx, t.Store)
}
