package calls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "calls:session:"
	sessionTTL       = 24 * time.Hour
)

// RedisStore keeps session JSON in Redis with a 24h TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	if rdb == nil {
		panic("calls: redis client cannot be nil")
	}
	return &RedisStore{rdb: rdb, ttl: sessionTTL}
}

func sessionKey(roomID string) string {
	return sessionKeyPrefix + roomID
}

func (s *RedisStore) Create(ctx context.Context, sess *CallSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("calls: marshal session: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, sessionKey(sess.RoomID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("calls: create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionExists, sess.RoomID)
	}
	return nil
}

func (s *RedisStore) Save(ctx context.Context, sess *CallSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("calls: marshal session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.RoomID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("calls: save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, roomID string) (*CallSession, error) {
	data, err := s.rdb.Get(ctx, sessionKey(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, roomID)
		}
		return nil, fmt.Errorf("calls: get session: %w", err)
	}
	var sess CallSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("calls: unmarshal session: %w", err)
	}
	return &sess, nil
}
