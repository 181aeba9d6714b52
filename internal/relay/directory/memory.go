package directory

import (
	"context"
	"sync"

	"github.com/example/fleetrelay/internal/relay/domain"
)

// MemoryStore is an in-memory directory suitable for tests and local demos.
type MemoryStore struct {
	mu      sync.RWMutex
	drivers map[domain.DriverID]domain.DriverProfile
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drivers: make(map[domain.DriverID]domain.DriverProfile)}
}

// Put registers a driver record.
func (m *MemoryStore) Put(profile domain.DriverProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[profile.ID] = profile
}

// GetDriver implements domain.DirectoryStore.
func (m *MemoryStore) GetDriver(_ context.Context, id domain.DriverID) (domain.DriverProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	profile, ok := m.drivers[id]
	if !ok {
		return domain.DriverProfile{}, domain.ErrDriverNotFound
	}
	return profile, nil
}
