// Package store implements the persistence boundary: a Redis snapshot store
// that is the source of truth for live games across process restarts, and a
// Postgres archive for finished games.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrel-labs/liveboard/internal/match"
)

// ErrNotFound is returned by Load for unknown game ids.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "game not found" }

const defaultSnapshotTTL = 24 * time.Hour

// RedisStore keeps one JSON snapshot per game. The client is pooled and safe
// for concurrent use across games.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore connects and pings the Redis at redisURL
// (redis://[:pass@]host:port/db).
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("redis url required")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreWithClient(rdb, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client; tests pass a miniredis
// backed one.
func NewRedisStoreWithClient(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func snapKey(id string) string { return "game:snap:" + strings.TrimSpace(id) }

// Save writes the snapshot. The caller (the coordinator's critical section)
// guarantees snapshots for one game are written in version order.
func (s *RedisStore) Save(ctx context.Context, snap match.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, snapKey(snap.ID), raw, s.ttl).Err()
}

// Load fetches the snapshot for id, or ErrNotFound.
func (s *RedisStore) Load(ctx context.Context, id string) (match.Snapshot, error) {
	raw, err := s.rdb.Get(ctx, snapKey(id)).Bytes()
	if err == redis.Nil {
		return match.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return match.Snapshot{}, err
	}
	var snap match.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return match.Snapshot{}, err
	}
	return snap, nil
}

// Delete removes a snapshot; used when archival retires a finished game.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, snapKey(id)).Err()
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
