// Package status validates and applies bus status transitions and triggers
// the delay notification fan-out.
package status

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/bus-tracking/internal/eta"
	"github.com/example/bus-tracking/internal/models"
	"github.com/example/bus-tracking/internal/notify"
	"github.com/example/bus-tracking/internal/observability"
)

// PositionReader is the store surface the engine needs beyond SetStatus.
type PositionReader interface {
	SetStatus(ctx context.Context, busID string, status models.BusStatus) error
	Get(ctx context.Context, busID string) (models.BusPosition, bool, error)
}

// Notifier fans a message out to all riders of a bus.
type Notifier interface {
	NotifyBusRiders(ctx context.Context, busID, message string) ([]notify.Outcome, error)
}

// Engine applies status changes as a leveled projection: the new value
// simply replaces the old, no history is kept, and any status is reachable
// from any other.
type Engine struct {
	Store       PositionReader
	Fanout      Notifier
	Destination models.Coord
	SpeedKmh    float64
	// Directions, when set, supplies route-aware durations; the straight-line
	// estimate is the fallback.
	Directions eta.DirectionsClient
	Logger     *slog.Logger
}

// SetStatus writes the new status and, strictly after the write is
// confirmed, fans out a delay notice when the bus transitions into
// RunningLate. A store failure surfaces to the caller and suppresses the
// notification; fan-out is never speculative.
func (e *Engine) SetStatus(ctx context.Context, busID string, newStatus models.BusStatus) error {
	if err := e.Store.SetStatus(ctx, busID, newStatus); err != nil {
		return fmt.Errorf("set status for bus %s: %w", busID, err)
	}
	observability.StatusTransitionsTotal.WithLabelValues(string(newStatus)).Inc()
	if newStatus != models.StatusRunningLate {
		return nil
	}

	msg := e.delayMessage(ctx, busID)
	outcomes, err := e.Fanout.NotifyBusRiders(ctx, busID, msg)
	if err != nil {
		e.logger().Error("delay fan-out failed", "bus_id", busID, "error", err)
		return nil
	}
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		e.logger().Warn("delay fan-out partially failed", "bus_id", busID, "failed", failed, "total", len(outcomes))
	}
	return nil
}

// delayMessage formats the rider-facing delay notice. Hours are omitted when
// zero; an unknown position yields an explicit "ETA unavailable" marker
// rather than a bogus zero estimate.
func (e *Engine) delayMessage(ctx context.Context, busID string) string {
	var from *models.Coord
	pos, ok, err := e.Store.Get(ctx, busID)
	if err != nil {
		e.logger().Warn("position read for ETA failed", "bus_id", busID, "error", err)
	} else if ok {
		from = &pos.Loc
	}
	est := e.estimate(from)
	if !est.Available {
		return "Bus is running late. ETA unavailable."
	}
	if est.Hours > 0 {
		return fmt.Sprintf("Bus is running late. ETA: %d h %d minutes.", est.Hours, est.Minutes)
	}
	return fmt.Sprintf("Bus is running late. ETA: %d minutes.", est.Minutes)
}

func (e *Engine) estimate(from *models.Coord) eta.Estimate {
	if from != nil && e.Directions != nil {
		secs, err := e.Directions.RouteSeconds(*from, e.Destination)
		if err == nil {
			return eta.FromSeconds(secs)
		}
		e.logger().Warn("directions lookup failed, falling back to straight-line estimate", "error", err)
	}
	return eta.FromCoords(from, &e.Destination, e.SpeedKmh)
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
