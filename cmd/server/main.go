// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"

	"github.com/Annany2002/nebula-insights/api"    // Import router setup
	"github.com/Annany2002/nebula-insights/config" // Import config loading
	"github.com/Annany2002/nebula-insights/internal/logger"
	"github.com/Annany2002/nebula-insights/internal/metrics"
	"github.com/Annany2002/nebula-insights/internal/rbac"
	"github.com/Annany2002/nebula-insights/internal/schema"
	"github.com/Annany2002/nebula-insights/internal/storage" // Import DB connection func
	"github.com/Annany2002/nebula-insights/internal/template"
	"github.com/Annany2002/nebula-insights/internal/upload"
)

var (
	customLog = logger.NewLogger()
)

func main() {
	customLog.Println("Starting Nebula Insights server...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		customLog.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize Database Connection
	store, err := storage.Connect(cfg)
	if err != nil {
		customLog.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		customLog.Println("Closing database connection...")
		if err := store.Close(); err != nil {
			customLog.Printf("Error closing database: %v", err)
		}
	}()

	// 3. Metrics
	collector := metrics.NewCollector()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collector,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 4. Access control
	resolver := rbac.NewResolver(store, cfg.DefaultRole, cfg.BootstrapAdminEmail)
	if err := resolver.Seed(ctx); err != nil {
		customLog.Fatalf("Failed to seed roles and permissions: %v", err)
	}

	// 5. Align the data table with the template before serving
	synchronizer := schema.NewSynchronizer(template.NewSource(cfg.TemplatePath), store, collector)
	report, err := synchronizer.Synchronize(ctx)
	if err != nil {
		customLog.Fatalf("Failed to synchronize schema with template %s: %v", cfg.TemplatePath, err)
	}
	customLog.Printf("Schema synchronized: %d added, %d renamed, %d modified, %d dropped",
		len(report.Added), len(report.Renamed), len(report.Modified), len(report.Dropped))

	if cfg.WatchTemplate {
		watcher := schema.NewWatcher(cfg.TemplatePath, synchronizer, schema.WatcherConfig{})
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				customLog.Errorf("Template watcher stopped: %v", err)
			}
		}()
	}

	// 6. Uploads and error report housekeeping
	reports, err := upload.NewReportStore(cfg.ReportDir, cfg.ReportRetention)
	if err != nil {
		customLog.Fatalf("Failed to prepare report directory: %v", err)
	}
	scheduler := cron.New()
	if _, err := reports.SchedulePurge(scheduler, cfg.ReportPurgeSchedule); err != nil {
		customLog.Fatalf("Invalid REPORT_PURGE_SCHEDULE '%s': %v", cfg.ReportPurgeSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	uploads := upload.NewService(synchronizer, store, reports, collector)

	// 7. Setup Router (passing dependencies)
	router := api.SetupRouter(api.Dependencies{
		Config:    cfg,
		Store:     store,
		Resolver:  resolver,
		Templates: synchronizer,
		Uploads:   uploads,
		Reports:   reports,
		Metrics:   collector,
		Gatherer:  registry,
	})

	// 8. Start Server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		customLog.Printf("Server listening on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			customLog.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	customLog.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		customLog.Errorf("Server shutdown error: %v", err)
	}
}
