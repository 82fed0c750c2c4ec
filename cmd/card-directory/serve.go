package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/card-directory/pkg/api"
)

// runServe handles the serve subcommand
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configFile := fs.String("config", defaultConfigPath, "Path to config file")
	logLevel := fs.String("loglevel", "", "Log level (debug, info, warn, error); overrides config")
	addr := fs.String("addr", "", "Listen address; overrides server.addr")
	pprofAddr := fs.String("pprof", "", "pprof address, e.g. localhost:6060 (disabled by default)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: card-directory serve [options]

Run the HTTP API: public search, admin card and feedback management,
and crawl control under /api/admin/crawl.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	log := setupLogger(*logLevel, os.Stderr)
	cfg, err := loadAndValidateConfig(*configFile, *logLevel, log)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	gin.SetMode(cfg.Server.GinMode)
	startPprof(*pprofAddr, log)

	ctx, stop := signalContext()
	defer stop()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
	defer a.shutdown(cfg.Server.ShutdownTimeout)

	deps := api.Deps{
		Directory:  a.directory,
		Crawl:      a.coordinator,
		Metrics:    a.metrics,
		RunContext: ctx,
	}
	if a.registry != nil {
		deps.Gatherer = a.registry
	}
	router := api.NewRouter(deps, a.log)
	server := api.NewServer(cfg.Server, router, a.log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	g.Go(func() error {
		// Stop the crawl loop as soon as the server goes down
		<-gctx.Done()
		a.coordinator.Stop()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("Server exited with error: %v", err)
		a.shutdown(cfg.Server.ShutdownTimeout)
		os.Exit(1)
	}
	log.Info("Shutdown complete.")
}
