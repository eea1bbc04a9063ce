package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/bus-tracking/internal/eta"
	"github.com/example/bus-tracking/internal/models"
	"github.com/example/bus-tracking/internal/notify"
	"github.com/example/bus-tracking/internal/observability"
	"github.com/example/bus-tracking/internal/status"
	"github.com/example/bus-tracking/internal/storage"
)

// PositionPublisher mirrors accepted position reports onto a stream.
type PositionPublisher interface {
	PublishPosition(ctx context.Context, p models.BusPosition) error
}

// FleetRadar answers proximity queries against the read-optimized position
// mirror (served from redis when configured).
type FleetRadar interface {
	Nearby(ctx context.Context, lat, lng, radiusM float64, limit int) ([]models.BusPosition, error)
}

// Config carries the client-facing tracking parameters the API serves and
// uses for ETA computation.
type Config struct {
	Destination    models.Coord
	SpeedKmh       float64
	ReportInterval time.Duration // driver-side sampling cadence
	PollInterval   time.Duration // rider-side position refresh cadence
}

type Server struct {
	store    storage.PositionStore
	feed     *storage.Feed
	engine   *status.Engine
	fanout   *notify.Fanout
	registry *notify.WSRegistry
	pub      PositionPublisher // optional
	radar    FleetRadar        // optional
	cfg      Config

	logger    *slog.Logger
	mux       *mux.Router
	unsubFeed func()
}

// New wires the API surface. The websocket registry is subscribed to the
// notification feed so inserts reach live rider sessions; Close releases
// that subscription.
func New(
	logger *slog.Logger,
	store storage.PositionStore,
	feed *storage.Feed,
	engine *status.Engine,
	fanout *notify.Fanout,
	pub PositionPublisher,
	radar FleetRadar,
	cfg Config,
) *Server {
	s := &Server{
		store:    store,
		feed:     feed,
		engine:   engine,
		fanout:   fanout,
		registry: notify.NewWSRegistry(),
		pub:      pub,
		radar:    radar,
		cfg:      cfg,
		logger:   logger,
		mux:      mux.NewRouter(),
	}
	s.unsubFeed = feed.Subscribe(s.registry.Dispatch)
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) Close() {
	if s.unsubFeed != nil {
		s.unsubFeed()
	}
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/buses/{bus_id}/position", s.handleReportPosition).Methods("POST")
	s.mux.HandleFunc("/api/v1/buses/{bus_id}/status", s.handleSetStatus).Methods("PUT")
	s.mux.HandleFunc("/api/v1/buses/nearby", s.handleNearby).Methods("GET")
	s.mux.HandleFunc("/api/v1/buses/{bus_id}", s.handleGetBus).Methods("GET")
	s.mux.HandleFunc("/api/v1/buses", s.handleGetFleet).Methods("GET")
	s.mux.HandleFunc("/api/v1/riders/{rider_id}/notifications", s.handleListNotifications).Methods("GET")
	s.mux.HandleFunc("/api/v1/notifications", s.handleBroadcast).Methods("POST")
	s.mux.HandleFunc("/api/v1/config", s.handleConfig).Methods("GET")
	s.mux.HandleFunc("/ws/riders/{rider_id}", s.handleRiderWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type positionReport struct {
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	Nickname  string     `json:"nickname,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func (s *Server) handleReportPosition(w http.ResponseWriter, r *http.Request) {
	busID := mux.Vars(r)["bus_id"]
	var body positionReport
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ts := time.Now().UTC()
	if body.Timestamp != nil {
		ts = body.Timestamp.UTC()
	}
	p := models.BusPosition{
		BusID:     busID,
		Nickname:  body.Nickname,
		Loc:       models.Coord{Lat: body.Lat, Lng: body.Lng},
		UpdatedAt: ts,
	}
	err := s.store.Upsert(r.Context(), p)
	switch {
	case errors.Is(err, storage.ErrInvalidCoordinate):
		http.Error(w, "invalid coordinate", http.StatusBadRequest)
		return
	case errors.Is(err, storage.ErrStaleTimestamp):
		observability.StalePositionWrites.Inc()
		http.Error(w, "stale position write", http.StatusConflict)
		return
	case err != nil:
		s.logger.Error("position upsert failed", "bus_id", busID, "error", err)
		http.Error(w, "failed to update", http.StatusInternalServerError)
		return
	}
	observability.PositionUpdatesTotal.Inc()
	if s.pub != nil {
		if err := s.pub.PublishPosition(r.Context(), p); err != nil {
			s.logger.Warn("position publish failed", "bus_id", busID, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	busID := mux.Vars(r)["bus_id"]
	var body struct {
		Status models.BusStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err := s.engine.SetStatus(r.Context(), busID, body.Status)
	switch {
	case errors.Is(err, storage.ErrInvalidStatus):
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "unknown bus", http.StatusNotFound)
		return
	case err != nil:
		s.logger.Error("status update failed", "bus_id", busID, "error", err)
		http.Error(w, "failed to update", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetBus(w http.ResponseWriter, r *http.Request) {
	busID := mux.Vars(r)["bus_id"]
	p, ok, err := s.store.Get(r.Context(), busID)
	if err != nil {
		s.logger.Error("position read failed", "bus_id", busID, "error", err)
		http.Error(w, "failed to read", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "unknown bus", http.StatusNotFound)
		return
	}
	resp := map[string]any{
		"position": p,
		"eta":      eta.FromCoords(&p.Loc, &s.cfg.Destination, s.cfg.SpeedKmh),
	}
	writeJSON(w, resp)
}

// handleConfig serves the cadence and destination parameters clients need:
// how often drivers should report and riders should refresh.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"destination":        s.cfg.Destination,
		"avg_speed_kmh":      s.cfg.SpeedKmh,
		"report_interval_ms": s.cfg.ReportInterval.Milliseconds(),
		"poll_interval_ms":   s.cfg.PollInterval.Milliseconds(),
	})
}

func (s *Server) handleGetFleet(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.GetAll(r.Context())
	if err != nil {
		s.logger.Error("fleet read failed", "error", err)
		http.Error(w, "failed to read", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"buses": all})
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	if s.radar == nil {
		http.Error(w, "proximity queries not configured", http.StatusServiceUnavailable)
		return
	}
	q := r.URL.Query()
	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(q.Get("lng"), 64)
	if err1 != nil || err2 != nil {
		http.Error(w, "lat and lng required", http.StatusBadRequest)
		return
	}
	radius := 5000.0
	if v := q.Get("radius_m"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			radius = f
		}
	}
	buses, err := s.radar.Nearby(r.Context(), lat, lng, radius, 20)
	if err != nil {
		s.logger.Error("nearby query failed", "error", err)
		http.Error(w, "failed to read", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"buses": buses})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	riderID := mux.Vars(r)["rider_id"]
	rows, err := s.feed.List(r.Context(), riderID)
	if err != nil {
		s.logger.Error("notification list failed", "rider_id", riderID, "error", err)
		http.Error(w, "failed to read", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"notifications": rows})
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.Message == "" {
		http.Error(w, "message required", http.StatusBadRequest)
		return
	}
	if err := s.fanout.Broadcast(r.Context(), body.Message); err != nil {
		s.logger.Error("broadcast failed", "error", err)
		http.Error(w, "failed to send", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

var upgrader = websocket.Upgrader{}

// handleRiderWS attaches a rider session to the live notification push.
// The session is removed and closed as soon as the peer goes away, so no
// registration outlives its connection.
func (s *Server) handleRiderWS(w http.ResponseWriter, r *http.Request) {
	riderID := mux.Vars(r)["rider_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.registry.Add(riderID, conn)
	go func() {
		defer func() {
			s.registry.Remove(riderID)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
