package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/andyyulianto77/kuis3/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SnapshotStore persists session snapshots in Redis, one JSON value per
// page path. The slot is overwritten on every save; the stored score and
// percentage are a cache, the session recomputes them on restore.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

func (s *SnapshotStore) Save(ctx context.Context, path string, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(path), data, s.ttl).Err()
}

// Load returns ok=false for missing, corrupt, or structurally invalid
// values; corruption is treated as absence, never as a fatal condition.
func (s *SnapshotStore) Load(ctx context.Context, path string) (domain.Snapshot, bool, error) {
	data, err := s.client.Get(ctx, s.key(path)).Bytes()
	if err == redis.Nil {
		return domain.Snapshot{}, false, nil
	}
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil || !snap.Valid() {
		return domain.Snapshot{}, false, nil
	}
	return snap, true, nil
}

func (s *SnapshotStore) Clear(ctx context.Context, path string) error {
	return s.client.Del(ctx, s.key(path)).Err()
}

func (s *SnapshotStore) key(path string) string {
	return "kuis:snapshot:" + path
}
