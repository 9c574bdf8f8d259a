package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	flagSuffix    = ":auth"
	sessionSuffix = ":session"
	flagSet       = "1"
)

// RedisStores issues redis-backed session stores. Durable across restarts
// when the redis instance persists to disk.
type RedisStores struct {
	client *redis.Client
}

// NewRedisStores builds a session store factory over the given client.
func NewRedisStores(client *redis.Client) *RedisStores {
	return &RedisStores{client: client}
}

// For returns the session store of one installation.
func (r *RedisStores) For(installationID string) Store {
	return &redisStore{client: r.client, prefix: "parkmate:session:" + installationID}
}

type redisStore struct {
	client *redis.Client
	prefix string
}

// Login overwrites the session wholesale. Flag and record are written in one
// MULTI/EXEC block so the flag is never observable without the record.
func (s *redisStore) Login(ctx context.Context, sess AuthSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.prefix+sessionSuffix, raw, 0)
	pipe.Set(ctx, s.prefix+flagSuffix, flagSet, 0)
	_, err = pipe.Exec(ctx)
	return err
}

// Logout removes flag and record atomically.
func (s *redisStore) Logout(ctx context.Context) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.prefix+flagSuffix)
	pipe.Del(ctx, s.prefix+sessionSuffix)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisStore) IsAuthenticated(ctx context.Context) (bool, error) {
	v, err := s.client.Get(ctx, s.prefix+flagSuffix).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == flagSet, nil
}

func (s *redisStore) Get(ctx context.Context) (AuthSession, error) {
	raw, err := s.client.Get(ctx, s.prefix+sessionSuffix).Bytes()
	if errors.Is(err, redis.Nil) {
		return AuthSession{}, ErrNoSession
	}
	if err != nil {
		return AuthSession{}, err
	}
	var sess AuthSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return AuthSession{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

// Update applies a partial change under WATCH so a concurrent login or update
// restarts the read-modify-write instead of losing fields.
func (s *redisStore) Update(ctx context.Context, p Partial) error {
	key := s.prefix + sessionSuffix
	for attempt := 0; attempt < 3; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return ErrNoSession
			}
			if err != nil {
				return err
			}
			var sess AuthSession
			if err := json.Unmarshal(raw, &sess); err != nil {
				return fmt.Errorf("decode session: %w", err)
			}
			p.apply(&sess)
			out, err := json.Marshal(sess)
			if err != nil {
				return fmt.Errorf("encode session: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, out, 0)
				pipe.Set(ctx, s.prefix+flagSuffix, flagSet, 0)
				return nil
			})
			return err
		}, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return redis.TxFailedErr
}
