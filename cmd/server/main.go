package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vytor/assessment/internal/api"
	"github.com/vytor/assessment/internal/auth"
	"github.com/vytor/assessment/internal/catalog"
	"github.com/vytor/assessment/internal/config"
	"github.com/vytor/assessment/internal/db"
	"github.com/vytor/assessment/internal/jobs"
	"github.com/vytor/assessment/internal/live"
	"github.com/vytor/assessment/internal/logger"
	"github.com/vytor/assessment/internal/models"
	"github.com/vytor/assessment/internal/repository/sqlstore"
	"github.com/vytor/assessment/internal/roster"
	"github.com/vytor/assessment/internal/services"
	"github.com/vytor/assessment/internal/worker"
)

func main() {
	cfg := config.Load()

	// Initialize logger
	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithFormat(logger.ParseFormat(cfg.LogFormat)),
		logger.WithColors(logger.ParseFormat(cfg.LogFormat) == logger.FormatText),
	)
	logger.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration: %v", err)
		os.Exit(1)
	}

	log.Info("===========================================")
	log.Info("Assessment Server Starting")
	log.Info("===========================================")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("db_driver=%s", cfg.DBDriver)
	log.Debug("log_level=%s", cfg.LogLevel)
	log.Debug("online_window=%s", cfg.OnlineWindow)
	log.Debug("live_interval=%s", cfg.LiveInterval)
	log.Debug("activity_worker_count=%d", cfg.ActivityWorkerCount)
	log.Debug("activity_queue_size=%d", cfg.ActivityQueueSize)

	ctx, cancel := context.WithCancel(logger.NewContext(context.Background(), log))
	defer cancel()

	dialect, err := db.ParseDialect(cfg.DBDriver)
	if err != nil {
		log.Error("invalid database driver: %v", err)
		os.Exit(1)
	}
	database, err := db.Open(ctx, dialect, cfg.DBPath)
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("closing database connection")
		database.Close()
	}()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Error("failed to load catalog: %v", err)
		os.Exit(1)
	}
	people, err := roster.Load(cfg.RosterPath)
	if err != nil {
		log.Error("failed to load roster: %v", err)
		os.Exit(1)
	}
	log.Info("catalog loaded: questions=%d sections=%d", cat.Len(), len(cat.Sections()))

	participants := sqlstore.NewParticipantRepository(database)
	sessions := sqlstore.NewSessionRepository(database)
	answers := sqlstore.NewAnswerRepository(database)
	activity := sqlstore.NewActivityRepository(database)
	progress := sqlstore.NewProgressRepository(database)

	// Activity entries are written off the request path.
	activityPool := worker.NewPool("activity", cfg.ActivityWorkerCount, cfg.ActivityQueueSize)
	activityPool.Start(ctx)
	recorder := jobs.NewActivityQueue(activityPool, activity)

	window := services.WithOnlineWindow(cfg.OnlineWindow)
	directory := services.NewDirectoryService(participants, sessions, answers, auth.NewPINHasher(cfg.PINCost))
	admin := services.NewAdminService(cfg.AdminSecret, services.AdminDeps{
		Participants: participants,
		Sessions:     sessions,
		Answers:      answers,
		Activity:     activity,
		Directory:    directory,
		Roster:       people,
		Catalog:      cat,
	}, window)

	report, err := directory.EnsureSeed(ctx, people)
	if err != nil {
		log.Error("failed to seed roster: %v", err)
		os.Exit(1)
	}
	log.Info("roster reconciled: created=%d migrated=%d merged=%d updated=%d",
		len(report.Created), len(report.Migrated), len(report.Merged), len(report.Updated))

	hub := live.NewHub()
	broadcaster := live.NewBroadcaster(hub, func(ctx context.Context) ([]models.ParticipantStats, error) {
		return admin.ListStats(ctx, cfg.AdminSecret)
	}, cfg.LiveInterval)
	go broadcaster.Run(ctx)

	srv := &api.Server{
		Directory:   directory,
		Sessions:    services.NewSessionService(participants, sessions, answers, recorder, cat, window),
		Progress:    services.NewProgressService(progress, cat),
		Admin:       admin,
		Catalog:     cat,
		Tokens:      auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Store:       database,
		Hub:         hub,
		CORSOrigins: cfg.CORSOrigins,
	}

	// WriteTimeout stays unset: the live dashboard holds its connection open
	// and every other route is bounded by the timeout middleware.
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error: %v", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info("received signal %v, initiating graceful shutdown", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Debug("closing live connections")
	hub.Close()

	log.Debug("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	// Stop after the server so in-flight requests can still queue activity.
	log.Debug("stopping activity pool")
	activityPool.Stop()
	cancel()

	log.Info("===========================================")
	log.Info("Assessment Server Stopped")
	log.Info("===========================================")
}
