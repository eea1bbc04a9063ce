package notify

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/bus-tracking/internal/models"
	"github.com/example/bus-tracking/internal/observability"
)

var ErrNoSession = errors.New("no rider session")

// WSSession is one connected rider's websocket, serialized by a write mutex.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(n)
}

// WSRegistry holds connected rider sessions keyed by rider id.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[string]*WSSession)} }

func (r *WSRegistry) Add(riderID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[riderID] = &WSSession{conn: conn}
	observability.RiderSessionsActive.Set(float64(len(r.sessions)))
}

func (r *WSRegistry) Remove(riderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, riderID)
	observability.RiderSessionsActive.Set(float64(len(r.sessions)))
}

// Push delivers a notification to one rider's live session if connected.
func (r *WSRegistry) Push(riderID string, n models.Notification) error {
	r.mu.RLock()
	s, ok := r.sessions[riderID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	return s.Send(n)
}

// PushAll delivers a broadcast notification to every connected session.
func (r *WSRegistry) PushAll(n models.Notification) {
	r.mu.RLock()
	sessions := make([]*WSSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()
	for _, s := range sessions {
		_ = s.Send(n) // best-effort; dead sessions are reaped on read error
	}
}

// Dispatch routes a stored notification to live sessions: targeted rows go
// to their rider, broadcasts to everyone. Intended as a Feed observer.
func (r *WSRegistry) Dispatch(n models.Notification) {
	if n.RiderID == "" {
		r.PushAll(n)
		return
	}
	_ = r.Push(n.RiderID, n)
}
