package scorecache

import (
	"context"
	"sync"
)

// Memory is an in-process Cache used in tests and as a stand-in where no
// database-backed cache is wired.
type Memory struct {
	mu      sync.RWMutex
	entries map[Key]Entry
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[Key]Entry)}
}

func (m *Memory) Get(_ context.Context, key Key) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if entry, ok := m.entries[key]; ok {
		return &entry, nil
	}
	return nil, nil
}

func (m *Memory) Put(_ context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Key] = *entry
	return nil
}

func (m *Memory) Invalidate(_ context.Context, projectID, unitID string, round int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if key.ProjectID == projectID && key.UnitID == unitID && key.Round == round {
			delete(m.entries, key)
		}
	}
	return nil
}

// Len reports the number of live entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
