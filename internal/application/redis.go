package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDraftTTL bounds how long an untouched draft is kept.
const DefaultDraftTTL = 24 * time.Hour

// RedisDraftStore keeps drafts as JSON strings.
type RedisDraftStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisDraftStore(client redis.Cmdable, ttl time.Duration) *RedisDraftStore {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &RedisDraftStore{client: client, ttl: ttl}
}

func draftKey(sid string) string { return "wafi:draft:" + sid }

// Load returns nil when the session has no draft.
func (s *RedisDraftStore) Load(ctx context.Context, sid string) (*Draft, error) {
	raw, err := s.client.Get(ctx, draftKey(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	d.ensureExperience()
	return &d, nil
}

func (s *RedisDraftStore) Save(ctx context.Context, sid string, d *Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.client.Set(ctx, draftKey(sid), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *RedisDraftStore) Delete(ctx context.Context, sid string) error {
	if err := s.client.Del(ctx, draftKey(sid)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// RedisLocker is a SETNX lock per session that expires on its own if the
// holder dies.
type RedisLocker struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisLocker(client redis.Cmdable, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl}
}

func lockKey(sid string) string { return "wafi:submit-lock:" + sid }

func (l *RedisLocker) TryLock(ctx context.Context, sid string) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(sid), "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set submit lock: %w", err)
	}
	return ok, nil
}

func (l *RedisLocker) Unlock(ctx context.Context, sid string) error {
	return l.client.Del(ctx, lockKey(sid)).Err()
}
