package changelog

import (
	"context"
	"sync"

	"provisioner/core/provision"
)

// CheckpointStore persists consumer checkpoints. Load returns a zero
// checkpoint carrying only the name when none was saved yet. Save must be a
// single atomic write.
type CheckpointStore interface {
	Load(ctx context.Context, name string) (provision.Checkpoint, error)
	Save(ctx context.Context, cp provision.Checkpoint) error
}

// MemoryStore keeps checkpoints in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	saved map[string]provision.Checkpoint
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{saved: make(map[string]provision.Checkpoint)}
}

func (s *MemoryStore) Load(_ context.Context, name string) (provision.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cp, ok := s.saved[name]; ok {
		return cp, nil
	}
	return provision.Checkpoint{Name: name}, nil
}

func (s *MemoryStore) Save(_ context.Context, cp provision.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[cp.Name] = cp
	return nil
}
