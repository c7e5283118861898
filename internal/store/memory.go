// ABOUTME: In-memory Store implementation backed by a mutex-guarded map
// ABOUTME: Default backend for tests and single-process deployments

package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store implementation. Snapshots are deep-copied
// on the way in and out, so callers never share state with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]*Snapshot // keyed by room ID
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*Snapshot),
	}
}

// Save persists a room snapshot, replacing any previous version.
func (m *MemoryStore) Save(ctx context.Context, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rooms[snap.ID] = snap.Clone()
	return nil
}

// Load retrieves a room snapshot by ID.
func (m *MemoryStore) Load(ctx context.Context, roomID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	return snap.Clone(), nil
}

// Delete removes a room snapshot. Absent rooms are a no-op.
func (m *MemoryStore) Delete(ctx context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.rooms, roomID)
	return nil
}

// LoadOrCreate retrieves a snapshot or returns a default one on a miss.
func (m *MemoryStore) LoadOrCreate(ctx context.Context, roomID string) (*Snapshot, error) {
	snap, err := m.Load(ctx, roomID)
	if err == ErrNotFound {
		return DefaultSnapshot(roomID), nil
	}
	return snap, err
}
