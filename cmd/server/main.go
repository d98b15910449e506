/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the elective booking engine server. Handles
  configuration, dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (file + environment), apply flag overrides
  2. Initialize SQLite store
  3. Wire engine services (registry, ledger, policy engine, reconciler)
  4. Configure HTTP router and start the reconciliation scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides APP_PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for an in-flight run)
  2. Stop accepting new connections, drain active requests (30s timeout)
  3. Close the database connection

SEE ALSO:
  - config/config.go: Configuration loading
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/campus/elective-engine/api"
	"github.com/campus/elective-engine/config"
	"github.com/campus/elective-engine/elective"
	"github.com/campus/elective-engine/store/sqlite"
)

func main() {
	port := flag.String("port", "", "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *port != "" {
		cfg.AppPort = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	log := newLogger(cfg.LogLevel)

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	// Engine wiring. The SQLite store serves every collaborator role.
	selections := elective.NewSelectionStore(store)
	registry := elective.NewRegistry(store)
	ledger := elective.NewLedger(store, store, selections)
	engine := elective.NewEngine(ledger, store, store, store, store, store)
	reconciler := elective.NewReconciler(store, store, store, engine, store, store,
		log.With().Str("component", "reconciler").Logger())

	handler := &api.Handler{
		Selections: selections,
		Registry:   registry,
		Engine:     engine,
		Reconciler: reconciler,
		Options:    store,
		Instances:  store,
		Runs:       store,
		Users:      store,
		Log:        log.With().Str("component", "api").Logger(),
	}

	scheduler := api.NewScheduler(reconciler, log.With().Str("component", "scheduler").Logger())
	scheduler.Interval = cfg.ReconcileInterval
	scheduler.Enabled = cfg.SchedulerEnabled
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}
