package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/example/bus-tracking/internal/config"
	"github.com/example/bus-tracking/internal/eta"
	"github.com/example/bus-tracking/internal/httpapi"
	"github.com/example/bus-tracking/internal/ingest"
	"github.com/example/bus-tracking/internal/logging"
	"github.com/example/bus-tracking/internal/models"
	"github.com/example/bus-tracking/internal/notify"
	"github.com/example/bus-tracking/internal/profiles"
	"github.com/example/bus-tracking/internal/status"
	"github.com/example/bus-tracking/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var (
		posStore   storage.PositionStore
		notifStore storage.NotificationStore
		dir        profiles.Store
	)
	if cfg.PGDSN != "" {
		db, err := storage.NewPostgres(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if cfg.RunMigrations {
			runMigrations(db, logger)
		}
		posStore = storage.NewPostgresPositionStore(db)
		notifStore = storage.NewPostgresNotificationStore(db)
		dir = profiles.NewPostgresStore(db)
	} else {
		logger.Warn("PG_DSN not set, using in-memory stores")
		posStore = storage.NewMemoryPositionStore()
		notifStore = storage.NewMemoryNotificationStore()
		dir = profiles.NewMemoryStore()
	}

	feed := storage.NewFeed(notifStore)
	fanout := &notify.Fanout{Directory: dir, Store: feed, Logger: logger}

	dest := models.Coord{Lat: cfg.DestinationLat, Lng: cfg.DestinationLng}
	engine := &status.Engine{
		Store:       posStore,
		Fanout:      fanout,
		Destination: dest,
		SpeedKmh:    cfg.AvgSpeedKmh,
		Logger:      logger,
	}
	if cfg.OSRMEndpoint != "" {
		engine.Directions = eta.NewOSRMClient(cfg.OSRMEndpoint)
	}

	var pub httpapi.PositionPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		pub = kp
	}

	var radar httpapi.FleetRadar
	if cfg.RedisAddr != "" {
		mirror := storage.NewRedisPositionMirror(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
		defer mirror.Close()
		radar = mirror
	}

	api := httpapi.New(logger, posStore, feed, engine, fanout, pub, radar, httpapi.Config{
		Destination:    dest,
		SpeedKmh:       cfg.AvgSpeedKmh,
		ReportInterval: cfg.ReportInterval,
		PollInterval:   cfg.PollInterval,
	})
	defer api.Close()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("bus-tracking listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func runMigrations(db *sql.DB, logger *slog.Logger) {
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_core_tables.sql"))
	if err != nil {
		logger.Error("migration read failed", "error", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		logger.Error("migration exec failed", "error", err)
		return
	}
	logger.Info("migration applied", "file", "001_create_core_tables.sql")
}
