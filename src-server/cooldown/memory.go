package cooldown

import (
	"context"
	"sync"
	"time"
)

// Process-local store. Entries are never evicted; use the bun or redis
// store when memory must stay bounded or cooldowns must survive restarts.
type MemoryStore struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{last: make(map[string]time.Time)}
}

func (m *MemoryStore) RecordSubmission(_ context.Context, applicantID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[applicantID] = now
	return nil
}

func (m *MemoryStore) LastSubmission(_ context.Context, applicantID string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.last[applicantID]
	return last, ok, nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.last)
}
