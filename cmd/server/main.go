/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the allocation API server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load configuration (.env, YAML, environment)
  2. Build the logger and register metrics
  3. Initialize SQLite store
  4. Create API handler, router and run scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config     YAML configuration file (default: $PRODUCAO_CONFIG)
  -port       HTTP server port, overrides the configuration
  -db         SQLite database path, overrides the configuration
              Use ":memory:" for in-memory database
  -scheduler  Run closed months automatically (default: true)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for an in-flight run)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with a configuration file
  ./server -config=./producao.yaml

  # Run with in-memory database and no scheduler
  ./server -db=":memory:" -scheduler=false

ENVIRONMENT:
  PRODUCAO_* variables override the file, see config/config.go.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - config/config.go: Configuration loading
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
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/librecode/producao/api"
	"github.com/librecode/producao/config"
	"github.com/librecode/producao/metrics"
	"github.com/librecode/producao/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides configuration)")
	dbPath := flag.String("db", "", "SQLite database path (overrides configuration)")
	withScheduler := flag.Bool("scheduler", true, "Run closed months automatically")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logger, err := config.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.WithError(err).Fatal("invalid log configuration")
	}
	metrics.Init()

	runCfg, err := cfg.Run.Payroll()
	if err != nil {
		logger.WithError(err).Fatal("invalid run configuration")
	}

	// Initialize store
	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			logger.WithError(err).Fatal("failed to create database directory")
		}
	}
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, runCfg, logger)

	scheduler := api.NewRunScheduler(handler)
	scheduler.Enabled = *withScheduler
	scheduler.Start()

	// Create router
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.WithFields(logrus.Fields{
			"port": cfg.Server.Port,
			"db":   cfg.Database.Path,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
		return
	}

	logger.Info("server stopped")
}
