package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisFieldToken   = "token"
	redisFieldRole    = "role"
	redisFieldExpires = "expires_at"

	// redisRetention keeps dead snapshots around briefly so Initialize can
	// observe the expiry and clear deliberately instead of them vanishing
	// mid-read.
	redisRetention = time.Hour
)

// RedisStorage persists the snapshot as one hash so the three fields are
// written and deleted together. Suited to kiosk-style deployments where
// the session should survive the process but not live on local disk.
type RedisStorage struct {
	client *redis.Client
	key    string
}

// NewRedisStorage returns storage keyed under key, e.g. "casaro:session:term-4".
func NewRedisStorage(client *redis.Client, key string) (*RedisStorage, error) {
	if client == nil {
		return nil, fmt.Errorf("session: redis client is required")
	}
	if key == "" {
		return nil, fmt.Errorf("session: redis key is required")
	}
	return &RedisStorage{client: client, key: key}, nil
}

func (r *RedisStorage) Load(ctx context.Context) (Snapshot, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("session: redis load: %w", err)
	}
	if len(fields) == 0 {
		return Snapshot{}, ErrNoSession
	}

	expires, err := time.Parse(time.RFC3339Nano, fields[redisFieldExpires])
	if err != nil {
		return Snapshot{}, ErrCorrupt
	}
	snap := Snapshot{
		Token:     fields[redisFieldToken],
		Role:      roleFromStorage(fields[redisFieldRole]),
		ExpiresAt: expires,
	}
	if !snap.Complete() {
		return Snapshot{}, ErrCorrupt
	}
	return snap, nil
}

func (r *RedisStorage) Save(ctx context.Context, snap Snapshot) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key)
	pipe.HSet(ctx, r.key,
		redisFieldToken, snap.Token,
		redisFieldRole, string(snap.Role),
		redisFieldExpires, snap.ExpiresAt.UTC().Format(time.RFC3339Nano),
	)
	pipe.ExpireAt(ctx, r.key, snap.ExpiresAt.Add(redisRetention))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: redis save: %w", err)
	}
	return nil
}

func (r *RedisStorage) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("session: redis clear: %w", err)
	}
	return nil
}
