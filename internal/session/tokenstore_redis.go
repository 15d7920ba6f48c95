// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/leadcrm/internal/platform/constants"
)

// RedisStore persists the token in Redis, one key per operator profile.
//
// Used by shared front-desk terminals where several processes must see the
// same session. The key expires together with the token when the expiry
// claim can be read.
type RedisStore struct {
	client    redis.Cmdable
	key       string
	validator *Validator
}

// NewRedisStore creates a Redis-backed [TokenStore] for profile.
//
// validator may be nil, in which case keys never expire on their own.
func NewRedisStore(client redis.Cmdable, profile string, validator *Validator) *RedisStore {
	return &RedisStore{
		client:    client,
		key:       constants.RedisPrefixToken + profile,
		validator: validator,
	}
}

// Key returns the Redis key holding the token.
func (store *RedisStore) Key() string {
	return store.key
}

/*
Get retrieves the persisted token.

Returns:
  - string: The token, or "" when the key is absent or expired
  - error: Connectivity errors
*/
func (store *RedisStore) Get(ctx context.Context) (string, error) {
	token, err := store.client.Get(ctx, store.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis_token_get_failed: %w", err)
	}
	return token, nil
}

/*
Set stores the token with a TTL matching its expiry claim.

Returns:
  - error: Storage failures
*/
func (store *RedisStore) Set(ctx context.Context, token string) error {
	if err := store.client.Set(ctx, store.key, token, store.ttl(token)).Err(); err != nil {
		return fmt.Errorf("redis_token_set_failed: %w", err)
	}
	return nil
}

/*
Clear removes the token.

Returns:
  - error: Deletion failures
*/
func (store *RedisStore) Clear(ctx context.Context) error {
	if err := store.client.Del(ctx, store.key).Err(); err != nil {
		return fmt.Errorf("redis_token_clear_failed: %w", err)
	}
	return nil
}

// ttl returns the remaining token lifetime, or 0 (no expiry) when unknown.
func (store *RedisStore) ttl(token string) time.Duration {
	if store.validator == nil {
		return 0
	}
	expiresAt, ok := store.validator.ExpiresAt(token)
	if !ok {
		return 0
	}
	remaining := expiresAt.Sub(store.validator.clock.Now())
	if remaining <= 0 {
		// Already expired: keep it just long enough for the next startup to purge it.
		return time.Second
	}
	return remaining
}
