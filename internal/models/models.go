package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BusStatus is the operator-facing running state of a bus. Any status is
// reachable from any other; there is no fixed transition sequence.
type BusStatus string

const (
	StatusRunning     BusStatus = "Running"
	StatusNotRunning  BusStatus = "Not Running"
	StatusRunningLate BusStatus = "Running Late"
)

func (s BusStatus) Valid() bool {
	switch s {
	case StatusRunning, StatusNotRunning, StatusRunningLate:
		return true
	}
	return false
}

// BusPosition is the single live record kept per bus: latest coordinates,
// status and the time of the last accepted position write.
type BusPosition struct {
	BusID     string    `json:"bus_id"`
	Nickname  string    `json:"nickname,omitempty"`
	Loc       Coord     `json:"loc"`
	Status    BusStatus `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Notification is one per-recipient message. An empty RiderID means
// broadcast-to-all. Rows are immutable once inserted.
type Notification struct {
	ID        string    `json:"id"`
	RiderID   string    `json:"rider_id,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDriver  Role = "driver"
	RoleStudent Role = "student"
)

// Profile is the read-only slice of the external profile store this service
// consumes: who a user is and which bus (if any) they are assigned to.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	BusID string `json:"bus_id,omitempty"` // empty = unassigned
}
