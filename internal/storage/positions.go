package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/example/bus-tracking/internal/geo"
	"github.com/example/bus-tracking/internal/models"
)

var (
	// ErrStaleTimestamp is returned when an incoming position write carries a
	// timestamp older than the stored record. Guards against out-of-order
	// delivery from retried or duplicated writes.
	ErrStaleTimestamp = errors.New("position write older than stored record")

	// ErrNotFound is returned by status updates against a bus that has never
	// reported a position.
	ErrNotFound = errors.New("bus not found")

	// ErrInvalidCoordinate rejects malformed coordinates before they reach
	// the record.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrInvalidStatus rejects status values outside the known set.
	ErrInvalidStatus = errors.New("invalid bus status")
)

// PositionStore keeps the single live position record per bus.
//
// Upsert and SetStatus touch disjoint field subsets and must never clobber
// each other: Upsert writes position fields only (status is defaulted on
// first contact, never overwritten), SetStatus writes the status field only.
// Upsert is idempotent under retry and ignores writes whose timestamp is
// older than the stored one.
type PositionStore interface {
	Upsert(ctx context.Context, p models.BusPosition) error
	SetStatus(ctx context.Context, busID string, status models.BusStatus) error
	Get(ctx context.Context, busID string) (models.BusPosition, bool, error)
	GetAll(ctx context.Context) ([]models.BusPosition, error)
}

type MemoryPositionStore struct {
	mu        sync.RWMutex
	positions map[string]models.BusPosition
}

func NewMemoryPositionStore() *MemoryPositionStore {
	return &MemoryPositionStore{positions: make(map[string]models.BusPosition)}
}

func (m *MemoryPositionStore) Upsert(ctx context.Context, p models.BusPosition) error {
	if !geo.ValidCoord(p.Loc) {
		return ErrInvalidCoordinate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.positions[p.BusID]
	if !ok {
		// first contact creates the record; status defaults to Running
		if !p.Status.Valid() {
			p.Status = models.StatusRunning
		}
		m.positions[p.BusID] = p
		return nil
	}
	if p.UpdatedAt.Before(cur.UpdatedAt) {
		return ErrStaleTimestamp
	}
	// partial update: position fields only, status stays as stored
	cur.Loc = p.Loc
	cur.UpdatedAt = p.UpdatedAt
	if p.Nickname != "" {
		cur.Nickname = p.Nickname
	}
	m.positions[p.BusID] = cur
	return nil
}

func (m *MemoryPositionStore) SetStatus(ctx context.Context, busID string, status models.BusStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.positions[busID]
	if !ok {
		return ErrNotFound
	}
	cur.Status = status
	m.positions[busID] = cur
	return nil
}

func (m *MemoryPositionStore) Get(ctx context.Context, busID string) (models.BusPosition, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[busID]
	return p, ok, nil
}

func (m *MemoryPositionStore) GetAll(ctx context.Context) ([]models.BusPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.BusPosition, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	return out, nil
}
