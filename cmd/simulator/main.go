// Simulator drives one fake bus against a running tracking server: a
// synthetic GPS source feeds a reporter session whose writes go through the
// HTTP position endpoint. Useful for demos and soak testing the pipeline.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/example/bus-tracking/internal/logging"
	"github.com/example/bus-tracking/internal/models"
	"github.com/example/bus-tracking/internal/reporter"
)

func main() {
	var (
		serverURL = flag.String("server", "http://localhost:8080", "tracking server base URL")
		busID     = flag.String("bus", "bus-1", "bus id to report as")
		nickname  = flag.String("nickname", "Simulated Bus", "bus display name")
		interval  = flag.Duration("interval", reporter.DefaultInterval, "reporting interval")
		startLat  = flag.Float64("lat", 12.971598, "starting latitude")
		startLng  = flag.Float64("lng", 77.594566, "starting longitude")
	)
	flag.Parse()

	logger := logging.NewLogger(os.Getenv("LOG_LEVEL"))

	src := newDriftSource(models.Coord{Lat: *startLat, Lng: *startLng})
	rep := &reporter.Reporter{
		BusID:    *busID,
		Nickname: *nickname,
		Source:   src,
		Store:    &httpWriter{base: *serverURL, client: &http.Client{Timeout: 3 * time.Second}},
		Interval: *interval,
		Logger:   logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess, err := rep.Start(ctx)
	if err != nil {
		logger.Error("simulator start failed", "error", err)
		os.Exit(1)
	}
	logger.Info("simulator running", "bus_id", *busID, "server", *serverURL, "interval", interval.String())

	<-ctx.Done()
	sess.Stop()
	src.stop()
}

// driftSource emits a fix every second, drifting from the starting point.
type driftSource struct {
	mu   sync.Mutex
	cur  models.Coord
	done chan struct{}
	once sync.Once
}

func newDriftSource(start models.Coord) *driftSource {
	return &driftSource{cur: start, done: make(chan struct{})}
}

func (d *driftSource) Subscribe(onUpdate func(models.Coord)) (func(), error) {
	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-d.done:
				return
			case <-t.C:
				d.mu.Lock()
				// ~20-50 m of movement per second along a wandering path
				d.cur.Lat += (rand.Float64() - 0.3) * 0.0005
				d.cur.Lng += (rand.Float64() - 0.3) * 0.0005
				fix := d.cur
				d.mu.Unlock()
				onUpdate(fix)
			}
		}
	}()
	return d.stop, nil
}

func (d *driftSource) stop() {
	d.once.Do(func() { close(d.done) })
}

// httpWriter reports positions through the server's position endpoint, the
// same path a real driver client uses.
type httpWriter struct {
	base   string
	client *http.Client
}

func (h *httpWriter) Upsert(ctx context.Context, p models.BusPosition) error {
	body, err := json.Marshal(map[string]any{
		"lat":       p.Loc.Lat,
		"lng":       p.Loc.Lng,
		"nickname":  p.Nickname,
		"timestamp": p.UpdatedAt,
	})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/v1/buses/%s/position", h.base, p.BusID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}
