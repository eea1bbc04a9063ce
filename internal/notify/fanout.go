// Package notify distributes one event into per-rider notification rows and
// pushes inserted rows to connected rider sessions.
package notify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/bus-tracking/internal/models"
	"github.com/example/bus-tracking/internal/observability"
)

// RiderDirectory resolves which riders are assigned to a bus.
type RiderDirectory interface {
	RidersForBus(ctx context.Context, busID string) ([]models.Profile, error)
}

// Inserter is the durable sink for notification rows.
type Inserter interface {
	Insert(ctx context.Context, n models.Notification) error
}

// Outcome is the per-recipient result of one fan-out batch.
type Outcome struct {
	RiderID string
	Err     error
}

type Fanout struct {
	Directory RiderDirectory
	Store     Inserter
	Logger    *slog.Logger
	Now       func() time.Time // defaults to time.Now
	NewID     func() string    // defaults to random hex
}

// NotifyBusRiders inserts one notification per rider assigned to the bus,
// all sharing a batch timestamp. Inserts are independent: a failure for one
// rider is recorded in the outcome list and the rest of the batch proceeds.
// Nothing is rolled back and nothing is retried; delivery is at-most-once
// per recipient.
func (f *Fanout) NotifyBusRiders(ctx context.Context, busID, message string) ([]Outcome, error) {
	riders, err := f.Directory.RidersForBus(ctx, busID)
	if err != nil {
		return nil, fmt.Errorf("resolve riders for bus %s: %w", busID, err)
	}
	createdAt := f.now().UTC()
	outcomes := make([]Outcome, 0, len(riders))
	for _, rider := range riders {
		n := models.Notification{
			ID:        f.newID(),
			RiderID:   rider.ID,
			Message:   message,
			CreatedAt: createdAt,
		}
		err := f.Store.Insert(ctx, n)
		outcomes = append(outcomes, Outcome{RiderID: rider.ID, Err: err})
		if err != nil {
			observability.NotificationsFailedTotal.Inc()
			f.logger().Warn("notification insert failed", "rider_id", rider.ID, "bus_id", busID, "error", err)
			continue
		}
		observability.NotificationsSentTotal.Inc()
	}
	return outcomes, nil
}

// Broadcast inserts a single untargeted notification visible to every rider.
func (f *Fanout) Broadcast(ctx context.Context, message string) error {
	n := models.Notification{
		ID:        f.newID(),
		Message:   message,
		CreatedAt: f.now().UTC(),
	}
	if err := f.Store.Insert(ctx, n); err != nil {
		observability.NotificationsFailedTotal.Inc()
		return fmt.Errorf("broadcast insert: %w", err)
	}
	observability.NotificationsSentTotal.Inc()
	return nil
}

func (f *Fanout) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func (f *Fanout) newID() string {
	if f.NewID != nil {
		return f.NewID()
	}
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (f *Fanout) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}
