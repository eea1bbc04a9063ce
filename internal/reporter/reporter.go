// Package reporter runs the vehicle-operator side of live tracking: it
// samples a push-based location source on a fixed cadence and writes the
// latest fix through to the position store.
package reporter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/bus-tracking/internal/models"
	"github.com/example/bus-tracking/internal/observability"
)

// LocationSource is a push-based coordinate stream (GPS, platform
// geolocation). Subscribe registers a callback invoked on every new fix and
// returns the matching unsubscribe handle.
type LocationSource interface {
	Subscribe(onUpdate func(models.Coord)) (unsubscribe func(), err error)
}

// PositionWriter is the narrow store surface the reporter needs.
type PositionWriter interface {
	Upsert(ctx context.Context, p models.BusPosition) error
}

// Publisher is an optional side channel mirroring accepted reports, e.g.
// onto a Kafka topic.
type Publisher interface {
	PublishPosition(ctx context.Context, p models.BusPosition) error
}

const DefaultInterval = 7 * time.Second

var ErrNoBusAssigned = errors.New("reporter: no bus assigned")

// Reporter holds the dependencies for one vehicle-operator session.
type Reporter struct {
	BusID    string
	Nickname string
	Source   LocationSource
	Store    PositionWriter
	Pub      Publisher // optional
	Interval time.Duration
	Clock    Clock
	Logger   *slog.Logger
}

// Session is one running sampling loop. Stop releases the location
// subscription and the ticker together and returns once no further store
// writes can be issued.
type Session struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (s *Session) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Start begins sampling. The timer never waits on a store write: each tick
// snapshots the latest fix into a pending slot of depth 1, coalescing any
// superseded pending write so a slow store can never reorder or pile up
// writes for the bus. A failed write is logged and abandoned; the next tick
// is the retry.
func (r *Reporter) Start(ctx context.Context) (*Session, error) {
	if r.BusID == "" {
		return nil, ErrNoBusAssigned
	}
	clock := r.Clock
	if clock == nil {
		clock = RealClock
	}
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var mu sync.Mutex
	var latest *models.Coord
	unsubscribe, err := r.Source.Subscribe(func(c models.Coord) {
		mu.Lock()
		latest = &c
		mu.Unlock()
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sess := &Session{cancel: cancel}
	ticker := clock.NewTicker(interval)
	pending := make(chan models.BusPosition, 1)

	sess.wg.Add(1)
	go func() {
		defer sess.wg.Done()
		defer unsubscribe()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				mu.Lock()
				fix := latest
				mu.Unlock()
				if fix == nil {
					continue
				}
				p := models.BusPosition{
					BusID:     r.BusID,
					Nickname:  r.Nickname,
					Loc:       *fix,
					UpdatedAt: clock.Now().UTC(),
				}
				// newest wins: drop a superseded pending write
				select {
				case pending <- p:
				default:
					select {
					case <-pending:
					default:
					}
					select {
					case pending <- p:
					default:
					}
				}
			}
		}
	}()

	sess.wg.Add(1)
	go func() {
		defer sess.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case p := <-pending:
				if ctx.Err() != nil {
					return
				}
				if err := r.Store.Upsert(ctx, p); err != nil {
					observability.PositionWriteFailures.Inc()
					logger.Warn("position write failed", "bus_id", p.BusID, "error", err)
					continue
				}
				observability.PositionUpdatesTotal.Inc()
				if r.Pub != nil {
					if err := r.Pub.PublishPosition(ctx, p); err != nil {
						logger.Warn("position publish failed", "bus_id", p.BusID, "error", err)
					}
				}
			}
		}
	}()

	return sess, nil
}
