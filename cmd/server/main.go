// Package main is the entry point for the churn dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fidde/churn_dashboard/internal/api"
	"github.com/fidde/churn_dashboard/internal/cache"
	"github.com/fidde/churn_dashboard/internal/config"
	"github.com/fidde/churn_dashboard/internal/exporter"
	"github.com/fidde/churn_dashboard/internal/storage"
	"github.com/fidde/churn_dashboard/internal/watch"
	"github.com/fidde/churn_dashboard/web"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML configuration file")
	flag.Parse()

	log.Println("Starting churn dashboard...")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create the data source and load the table once up front
	storageCfg, err := cfg.StorageConfig()
	if err != nil {
		log.Fatalf("Invalid source configuration: %v", err)
	}
	source, err := storage.NewSource(ctx, storageCfg, logger)
	if err != nil {
		log.Fatalf("Failed to create source: %v", err)
	}
	registry := storage.NewRegistry(source, logger)
	registry.SetCheckInterval(cfg.Source.CheckInterval)
	defer func() {
		if err := registry.Close(); err != nil {
			log.Printf("Error closing source: %v", err)
		}
	}()

	view, err := registry.View(ctx)
	if err != nil {
		log.Fatalf("Failed to load churn table: %v", err)
	}
	log.Printf("Loaded %d customers (%d without TotalCharges)", view.Len(), view.MissingTotalCharges())

	if cfg.Source.Watch {
		w := watch.New(cfg.Source.Path, registry, logger)
		if err := w.Start(ctx); err != nil {
			log.Fatalf("Failed to watch %s: %v", cfg.Source.Path, err)
		}
	}

	// Optional result cache; the dashboard works without it
	var resultCache *cache.Cache
	if cfg.Cache.Enabled {
		resultCache, err = cache.Dial(ctx, cfg.Cache.RedisAddr, cfg.Cache.TTL, logger)
		if err != nil {
			log.Printf("Result cache disabled: %v", err)
			resultCache = nil
		} else {
			log.Printf("Result cache enabled (redis: %s, ttl: %s)", cfg.Cache.RedisAddr, cfg.Cache.TTL)
			defer resultCache.Close()
		}
	}

	var metricsExporter api.MetricsExporter
	if cfg.Exporter.Enabled {
		exp, err := exporter.New(exporter.Config{
			Protocol:    cfg.Exporter.Protocol,
			Endpoint:    cfg.Exporter.Endpoint,
			ServiceName: cfg.Exporter.ServiceName,
		}, logger)
		if err != nil {
			log.Fatalf("Failed to create OTLP exporter: %v", err)
		}
		defer exp.Close()
		metricsExporter = exp
		log.Printf("Exporting evaluation metrics via OTLP/%s to %s", cfg.Exporter.Protocol, cfg.Exporter.Endpoint)
	}

	assets, err := web.NewAssets()
	if err != nil {
		log.Fatalf("Failed to load embedded UI: %v", err)
	}

	apiServer := api.NewServer(registry, api.Options{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		DefaultTopN:    cfg.Dashboard.DefaultTopN,
		MaxTopN:        cfg.Dashboard.MaxTopN,
		RankMode:       cfg.Dashboard.ParsedRankMode(),
		Schema:         storageCfg.Schema,
		Cache:          resultCache,
		Exporter:       metricsExporter,
		Static:         assets,
		Logger:         logger,
	})

	errChan := make(chan error, 1)
	go func() {
		log.Printf("Starting REST API server on %s", cfg.Server.Addr)
		if err := apiServer.Start(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	log.Println("API endpoints:")
	log.Printf("  - Dashboard: http://%s/", cfg.Server.Addr)
	log.Printf("  - Evaluate: http://%s/api/v1/evaluate", cfg.Server.Addr)
	log.Printf("  - Compare: http://%s/api/v1/compare", cfg.Server.Addr)
	log.Printf("  - Health: http://%s/api/v1/health", cfg.Server.Addr)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Printf("Server error: %v", err)
	case sig := <-sigChan:
		log.Printf("Received signal: %v, shutting down...", sig)
	}

	// Stop the watcher before closing the source
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down API server: %v", err)
	}

	log.Println("Shutdown complete")
}
