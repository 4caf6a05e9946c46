package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory. Suitable for development and
// tests; sessions do not survive restarts and are not shared across workers.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]string
}

// NewMemoryStore creates an in-process session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]map[string]string)}
}

func (s *MemoryStore) Load(ctx context.Context, sessionID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make(map[string]string, len(s.sessions[sessionID]))
	for k, v := range s.sessions[sessionID] {
		values[k] = v
	}
	return values, nil
}

func (s *MemoryStore) Save(ctx context.Context, sessionID string, values map[string]string) error {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}

	s.mu.Lock()
	s.sessions[sessionID] = copied
	s.mu.Unlock()
	return nil
}
