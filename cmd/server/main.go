/*
main.go - Application entry point

PURPOSE:

	Initializes and starts the routine engine server.
	Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
 1. Load configuration (defaults, routines.toml, ROUTINES_* env, flags)
 2. Build the zap logger
 3. Initialize SQLite store
 4. Create accountant, API handler and reconcile scheduler
 5. Configure HTTP router with metrics
 6. Start server with graceful shutdown

COMMAND-LINE FLAGS:

	-config               TOML config file (default: routines.toml if present)
	-port                 HTTP server port (default: 8080)
	-db                   SQLite database path (default: routines.db)
	                      Use ":memory:" for in-memory database
	-log-level            debug, info, warn, error
	-log-format           json or console
	-tz                   IANA zone that decides when "today" rolls over
	-allowed-origins      Comma separated CORS origins
	-reconcile-interval   Background reconciliation interval, 0 disables
	-scenarios            Seed the busy-month demo scenario at startup

GRACEFUL SHUTDOWN:

	On SIGINT/SIGTERM:
	1. Stop the reconcile scheduler
	2. Stop accepting new connections
	3. Wait for active requests to complete (30s timeout)
	4. Close database connection

EXAMPLES:

	./server -db="./data/routines.db" -tz=Europe/Paris
	./server -db=":memory:" -scenarios -log-format=console

SEE ALSO:
  - config/config.go: Configuration sources
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/routinely/routine-engine/api"
	"github.com/routinely/routine-engine/calendar"
	"github.com/routinely/routine-engine/config"
	"github.com/routinely/routine-engine/logging"
	"github.com/routinely/routine-engine/metrics"
	"github.com/routinely/routine-engine/routine"
	"github.com/routinely/routine-engine/store/sqlite"
)

const demoScenario = "busy-month"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	collector := metrics.New(metrics.Options{RuntimeMetrics: true})

	accountant := routine.NewAccountant(store, logger, collector)
	accountant.Today = func() calendar.Date { return calendar.TodayIn(loc) }

	handler := api.NewHandler(store, accountant, logger)
	if cfg.LoadScenarios {
		if err := handler.LoadScenarioByID(context.Background(), demoScenario); err != nil {
			logger.Warn("failed to load demo scenario", zap.String("scenario", demoScenario), zap.Error(err))
		}
	}

	scheduler := api.NewReconcileScheduler(store, accountant, logger)
	scheduler.CheckInterval = cfg.ReconcileInterval.Duration
	scheduler.Start()
	defer scheduler.Stop()

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        collector,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("db", cfg.DBPath),
			zap.String("timezone", loc.String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
