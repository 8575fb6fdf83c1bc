package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"thinkr-backend/internal/model"
)

const (
	fieldVersion = "v"
	fieldData    = "data"

	// deletedVersion marks a tombstone that outranks every real snapshot.
	deletedVersion = math.MaxInt32
)

// setIfNewer stores a snapshot only when its version is above the cached one.
// KEYS[1] session key; ARGV version, payload, ttl in milliseconds.
var setIfNewer = redisv9.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// SessionCache keeps recently used chat sessions in Redis. Entries expire
// after the TTL, so memory stays bounded and every instance sees the same data.
//
// Each entry carries a version, the session's message count. Messages are
// append-only, so a larger count is always the newer snapshot, and Set never
// replaces a newer entry with an older one. Delete leaves a tombstone for the
// TTL so an in-flight read cannot bring a deleted session back.
type SessionCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewSessionCache(client *redisv9.Client, ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *SessionCache) Get(ctx context.Context, sessionID string) (*model.ChatSession, bool, error) {
	raw, err := c.client.HGet(ctx, c.key(sessionID), fieldData).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get session failed: %w", err)
	}

	var session model.ChatSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached session failed: %w", err)
	}
	return &session, true, nil
}

// Set caches session unless the cache already holds a snapshot at least as
// new, or the session was deleted.
func (c *SessionCache) Set(ctx context.Context, session *model.ChatSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session cache failed: %w", err)
	}
	err = setIfNewer.Run(ctx, c.client,
		[]string{c.key(session.SessionID)},
		snapshotVersion(session), payload, c.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis set session failed: %w", err)
	}
	return nil
}

func (c *SessionCache) Delete(ctx context.Context, sessionID string) error {
	key := c.key(sessionID)
	_, err := c.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldVersion, deletedVersion)
		pipe.PExpire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete session failed: %w", err)
	}
	return nil
}

func (c *SessionCache) key(sessionID string) string {
	return "chat:session:" + sessionID
}

func snapshotVersion(session *model.ChatSession) int {
	return len(session.Messages)
}
