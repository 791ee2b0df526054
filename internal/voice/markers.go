package voice

import (
	"context"
	"sync"
	"time"
)

// MarkerStore holds the instant each connected user entered voice.
type MarkerStore interface {
	Get(ctx context.Context, userID string) (time.Time, bool, error)
	Set(ctx context.Context, userID string, at time.Time) error
	Delete(ctx context.Context, userID string) error
}

// MemoryMarkerStore keeps markers in process memory. Sessions open at
// restart are lost with it.
type MemoryMarkerStore struct {
	mu      sync.Mutex
	markers map[string]time.Time
}

// NewMemoryMarkerStore returns an empty MemoryMarkerStore.
func NewMemoryMarkerStore() *MemoryMarkerStore {
	return &MemoryMarkerStore{markers: make(map[string]time.Time)}
}

func (m *MemoryMarkerStore) Get(_ context.Context, userID string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.markers[userID]
	return at, ok, nil
}

func (m *MemoryMarkerStore) Set(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers[userID] = at
	return nil
}

func (m *MemoryMarkerStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.markers, userID)
	return nil
}

// Len returns the number of open markers.
func (m *MemoryMarkerStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.markers)
}
