package state

import (
	"maps"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Intents never expire.
type MemoryStore struct {
	mu      sync.RWMutex
	intents map[int64]Intent
	now     func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		intents: make(map[int64]Intent),
		now:     time.Now,
	}
}

// Set records a new intent, replacing the previous one.
func (m *MemoryStore) Set(userID int64, target Target, payload Payload, back string) {
	in := Intent{
		UserID:      userID,
		Target:      target,
		Payload:     maps.Clone(payload),
		BackCommand: back,
		CreatedAt:   m.now(),
	}
	if in.Payload == nil {
		in.Payload = Payload{}
	}
	m.mu.Lock()
	m.intents[userID] = in
	m.mu.Unlock()
}

// Get returns a copy of the user's intent.
func (m *MemoryStore) Get(userID int64) (Intent, bool) {
	m.mu.RLock()
	in, ok := m.intents[userID]
	m.mu.RUnlock()
	if ok {
		in.Payload = maps.Clone(in.Payload)
	}
	return in, ok
}

// Clear removes the user's intent.
func (m *MemoryStore) Clear(userID int64) {
	m.mu.Lock()
	delete(m.intents, userID)
	m.mu.Unlock()
}

// Len returns the number of live intents.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.intents)
}
