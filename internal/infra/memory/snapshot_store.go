package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/andyyulianto77/kuis3/internal/domain"
)

// SnapshotStore keeps serialized session snapshots in process memory. It
// round-trips through JSON so structural validation behaves identically to
// the durable backends.
type SnapshotStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{items: make(map[string][]byte)}
}

func (s *SnapshotStore) Save(_ context.Context, path string, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.items[path] = data
	s.mu.Unlock()
	return nil
}

// Load returns the stored snapshot, or ok=false when absent or corrupt.
// Corrupt data is treated as absence, never as a fatal condition.
func (s *SnapshotStore) Load(_ context.Context, path string) (domain.Snapshot, bool, error) {
	s.mu.RLock()
	data, ok := s.items[path]
	s.mu.RUnlock()
	if !ok {
		return domain.Snapshot{}, false, nil
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil || !snap.Valid() {
		return domain.Snapshot{}, false, nil
	}
	return snap, true, nil
}

func (s *SnapshotStore) Clear(_ context.Context, path string) error {
	s.mu.Lock()
	delete(s.items, path)
	s.mu.Unlock()
	return nil
}
