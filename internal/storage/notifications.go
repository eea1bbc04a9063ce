package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/example/bus-tracking/internal/models"
)

// NotificationStore persists immutable notification rows. List returns the
// rows visible to one rider: their own plus broadcasts, newest first.
type NotificationStore interface {
	Insert(ctx context.Context, n models.Notification) error
	List(ctx context.Context, riderID string) ([]models.Notification, error)
}

type MemoryNotificationStore struct {
	mu   sync.RWMutex
	rows []models.Notification
}

func NewMemoryNotificationStore() *MemoryNotificationStore {
	return &MemoryNotificationStore{}
}

func (m *MemoryNotificationStore) Insert(ctx context.Context, n models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, n)
	return nil
}

func (m *MemoryNotificationStore) List(ctx context.Context, riderID string) ([]models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Notification, 0, len(m.rows))
	for _, n := range m.rows {
		if n.RiderID == "" || n.RiderID == riderID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Feed wraps a NotificationStore with a push-subscription mode: every
// successful insert is delivered to all registered observers. Subscribe
// returns a teardown handle; session owners must call it on teardown so no
// orphaned observers outlive their session.
type Feed struct {
	store NotificationStore

	mu     sync.Mutex
	nextID int
	subs   map[int]func(models.Notification)
}

func NewFeed(store NotificationStore) *Feed {
	return &Feed{store: store, subs: make(map[int]func(models.Notification))}
}

func (f *Feed) Insert(ctx context.Context, n models.Notification) error {
	if err := f.store.Insert(ctx, n); err != nil {
		return err
	}
	f.mu.Lock()
	observers := make([]func(models.Notification), 0, len(f.subs))
	for _, fn := range f.subs {
		observers = append(observers, fn)
	}
	f.mu.Unlock()
	for _, fn := range observers {
		fn(n)
	}
	return nil
}

func (f *Feed) List(ctx context.Context, riderID string) ([]models.Notification, error) {
	return f.store.List(ctx, riderID)
}

// Subscribe registers an observer for insert events and returns its
// unsubscribe func. Safe to call the teardown more than once.
func (f *Feed) Subscribe(fn func(models.Notification)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}
