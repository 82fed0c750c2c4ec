package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/card-directory/pkg/config"
	"github.com/Sriram-PR/card-directory/pkg/crawler"
	"github.com/Sriram-PR/card-directory/pkg/directory"
	"github.com/Sriram-PR/card-directory/pkg/extract"
	"github.com/Sriram-PR/card-directory/pkg/fetch"
	"github.com/Sriram-PR/card-directory/pkg/ingest"
	"github.com/Sriram-PR/card-directory/pkg/metrics"
	"github.com/Sriram-PR/card-directory/pkg/storage"
)

const forcedExitGrace = 30 * time.Second

// app bundles the components shared by serve, crawl and mcp-server
type app struct {
	cfg         *config.AppConfig
	store       *storage.PostgresStore
	ledger      storage.LedgerAdmin  // nil when state_dir is unset
	registry    *prometheus.Registry // nil when metrics are disabled
	metrics     *metrics.Metrics
	coordinator *crawler.Coordinator
	directory   *directory.Service
	log         *logrus.Entry
}

// buildApp connects to the database and wires the crawl pipeline.
// The ledger GC loop is bound to ctx.
func buildApp(ctx context.Context, cfg *config.AppConfig, log *logrus.Logger) (*app, error) {
	entry := log.WithField("component", "app")
	a := &app{cfg: cfg, log: entry}

	// --- Storage ---
	db, err := storage.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := storage.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		entry.Info("Database schema ensured")
	}
	a.store = storage.NewPostgresStore(db, entry)

	var ledger storage.OutcomeLedger
	if cfg.LedgerEnabled() {
		outcomes, err := storage.NewOutcomeStore(cfg.StateDir, entry)
		if err != nil {
			a.store.Close()
			return nil, fmt.Errorf("open outcome ledger: %w", err)
		}
		ledger, a.ledger = outcomes, outcomes
		go a.ledger.RunGC(ctx, cfg.Crawl.LedgerGCInterval)
	}

	// --- Metrics ---
	if cfg.Server.MetricsEnabled() {
		a.registry = prometheus.NewRegistry()
		a.metrics = metrics.New(a.registry)
	}

	// --- HTTP Fetching Components ---
	httpClient := fetch.NewClient(cfg.HTTPClientSettings, entry)
	var robots *fetch.RobotsGuard
	if cfg.Crawl.RespectRobotsTxt {
		robots = fetch.NewRobotsGuard(httpClient, cfg.Crawl.UserAgent, cfg.Crawl.FetchTimeout, entry)
	}
	fetcher := fetch.NewFetcher(httpClient, fetch.OptionsFromConfig(cfg.Crawl), robots, entry)

	extractor, err := extract.New(cfg.Crawl.Extractor)
	if err != nil {
		a.close()
		return nil, err
	}

	// --- Pipeline ---
	gateway := ingest.NewGateway(a.store, ingest.NewDuplicateChecker(a.store, entry), entry)
	a.coordinator = crawler.NewCoordinator(fetcher, extractor, gateway, crawler.Options{
		Delay:   cfg.Crawl.Delay,
		Ledger:  ledger,
		Metrics: a.metrics,
	}, entry)
	a.directory = directory.NewService(a.store, entry)
	return a, nil
}

// shutdown stops any crawl run, waits up to timeout for the in-flight URL,
// then releases storage.
func (a *app) shutdown(timeout time.Duration) {
	if a.coordinator != nil && a.coordinator.Stop() {
		a.log.Info("Stopping crawl run...")
	}
	if a.coordinator != nil {
		done := make(chan struct{})
		go func() {
			a.coordinator.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			a.log.Warnf("Crawl run did not finish within %v", timeout)
		}
	}
	a.close()
}

func (a *app) close() {
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.log.Errorf("Error closing outcome ledger: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Errorf("Error closing database: %v", err)
		}
	}
}

// signalContext returns a context cancelled on the first SIGINT/SIGTERM.
// A second signal, or a stalled shutdown, forces exit.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logrus.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigChan:
			logrus.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(forcedExitGrace):
			logrus.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// startPprof starts the pprof HTTP server if addr is non-empty.
func startPprof(addr string, log *logrus.Logger) {
	if addr == "" {
		return
	}
	go func() {
		log.Infof("Starting pprof server at http://%s/debug/pprof/", addr)
		if err := http.ListenAndServe(addr, nil); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("pprof server error: %v", err)
		}
	}()
}
