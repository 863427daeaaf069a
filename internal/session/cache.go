// Package session implements the token-keyed session cache. A cached
// entry, not the token's own signature, is what makes a session live:
// evicting the entry revokes access immediately even while the token
// would still verify.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotCached is returned on a cache miss. Callers treat it exactly
// like an invalid token; there is no fallback to signature checking.
var ErrNotCached = errors.New("session not cached")

const (
	sessionKeyPrefix = "auth:"
	userIndexPrefix  = "auth:user:"
)

// Entry is the cached authorization decision for one live token.
type Entry struct {
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Department  string   `json:"department"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	ExpiresAt   int64    `json:"expires_at"`
}

// Cache stores authorization decisions keyed by token.
type Cache struct {
	client *redis.Client
}

// NewCache creates a session cache backed by the given Redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Put stores the entry under a key derived from the exact token string,
// overwriting any prior entry for that token. It also indexes the key
// in a per-user set so all of a user's sessions can be revoked at once.
func (c *Cache) Put(ctx context.Context, token string, entry *Entry, ttl time.Duration) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to serialize session entry: %w", err)
	}

	key := sessionKey(token)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, payload, ttl)
	pipe.SAdd(ctx, userIndexKey(entry.UserID), key)
	pipe.Expire(ctx, userIndexKey(entry.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache session: %w", err)
	}
	return nil
}

// Get returns the cached entry for the token, or ErrNotCached on miss.
func (c *Cache) Get(ctx context.Context, token string) (*Entry, error) {
	payload, err := c.client.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session cache: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		return nil, fmt.Errorf("failed to decode session entry: %w", err)
	}
	return &entry, nil
}

// Invalidate removes the entry for one token. Removing an absent entry
// is not an error, so logout is idempotent.
func (c *Cache) Invalidate(ctx context.Context, token string) error {
	if err := c.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	return nil
}

// InvalidateUser removes every cached session of a user. Used when the
// user's roles change so that stale claim sets stop being served.
func (c *Cache) InvalidateUser(ctx context.Context, userID string) error {
	indexKey := userIndexKey(userID)
	keys, err := c.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list sessions for user %s: %w", userID, err)
	}

	keys = append(keys, indexKey)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate sessions for user %s: %w", userID, err)
	}
	return nil
}

// sessionKey hashes the token so the cache key is bounded in size while
// still being derived from the exact token string.
func sessionKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return sessionKeyPrefix + hex.EncodeToString(sum[:])
}

func userIndexKey(userID string) string {
	return userIndexPrefix + userID
}
