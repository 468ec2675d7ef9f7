/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the rental billing server. Handles configuration,
  dependency injection, the scheduled due-date sweep, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env and environment configuration
  2. Configure logging
  3. Initialize SQLite store
  4. Build the billing engine and installment service
  5. Schedule the daily sweep
  6. Start server with graceful shutdown

CONFIGURATION (environment, see config/config.go):
  PORT           HTTP server port (default: 8080)
  DB_PATH        SQLite database path (default: ./data/billing.db)
                 Use ":memory:" for an in-memory database
  LOG_LEVEL      logrus level (default: info)
  LOG_FORMAT     "json" or "text" (default: json)
  SWEEP_CRON     cron expression for the daily sweep (default: "0 6 * * *")
  SWEEP_TENANTS  comma-separated tenant ids the sweep covers

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the cron scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - installment/service.go: The sweep body
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/CortekUK/drive-247-sub010/api"
	"github.com/CortekUK/drive-247-sub010/config"
	"github.com/CortekUK/drive-247-sub010/gateway"
	"github.com/CortekUK/drive-247-sub010/installment"
	"github.com/CortekUK/drive-247-sub010/ledger"
	"github.com/CortekUK/drive-247-sub010/store/sqlite"
)

func main() {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.NewConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logrus.New()
	if cfg.LogJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Domain services
	engine := ledger.NewEngine(store, log)
	plans := installment.NewService(store, engine, gateway.NewLocal(log), log)

	// Scheduled sweep, one run per configured tenant
	scheduler := cron.New()
	tenants := splitTenants(cfg.TenantIDs)
	if len(tenants) > 0 {
		_, err := scheduler.AddFunc(cfg.SweepCron, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			for _, tenant := range tenants {
				report, err := plans.SweepDue(ctx, tenant, ledger.Today())
				if err != nil {
					log.WithError(err).WithField("tenant_id", tenant).Error("sweep failed")
					continue
				}
				log.WithFields(logrus.Fields{
					"tenant_id": tenant,
					"due":       report.Due,
					"captured":  report.Captured,
					"failed":    report.Failed,
				}).Info("sweep completed")
			}
		})
		if err != nil {
			log.Fatalf("Invalid SWEEP_CRON %q: %v", cfg.SweepCron, err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	// HTTP surface
	handler := api.NewHandler(engine, plans, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Server starting on http://localhost:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped")
}

func splitTenants(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
