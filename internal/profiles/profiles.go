// Package profiles is a read-only view over the external profile store.
// Rider-to-bus assignment is owned elsewhere; this service only consumes it.
package profiles

import (
	"context"
	"sync"

	"github.com/example/bus-tracking/internal/models"
)

type Store interface {
	Get(ctx context.Context, id string) (models.Profile, bool, error)
	// RidersForBus returns the students currently assigned to a bus.
	RidersForBus(ctx context.Context, busID string) ([]models.Profile, error)
}

type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]models.Profile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]models.Profile)}
}

func (m *MemoryStore) Put(p models.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

func (m *MemoryStore) Get(ctx context.Context, id string) (models.Profile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	return p, ok, nil
}

func (m *MemoryStore) RidersForBus(ctx context.Context, busID string) ([]models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Profile
	for _, p := range m.profiles {
		if p.Role == models.RoleStudent && p.BusID == busID {
			out = append(out, p)
		}
	}
	return out, nil
}
