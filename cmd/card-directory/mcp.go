package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Sriram-PR/card-directory/pkg/mcp"
)

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string) {
	fs := flag.NewFlagSet("mcp-server", flag.ExitOnError)
	configFile := fs.String("config", defaultConfigPath, "Path to config file")
	transport := fs.String("transport", "", "Transport type (stdio, sse); overrides mcp.transport")
	port := fs.Int("port", 0, "HTTP port for sse transport; overrides mcp.port")
	logLevel := fs.String("loglevel", "", "Log level (debug, info, warn, error); overrides config")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: card-directory mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Start with stdio transport
  card-directory mcp-server -config config.yaml

  # Start with SSE transport on port 8081
  card-directory mcp-server -config config.yaml -transport sse -port 8081

Available MCP Tools:
  search_cards     Keyword search over directory cards
  get_card         Fetch one card by id
  enqueue_urls     Add URLs to the crawl queue
  start_crawl      Start draining the queue in the background
  stop_crawl       Stop the running crawl
  crawl_status     Queue depth and run counters
  clear_queue      Drop every pending URL
  list_categories  Static category tree
  crawl_outcomes   Recent per-URL crawl results
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doMcpServer(*configFile, *transport, *port, *logLevel, os.Stderr))
}

// doMcpServer is the testable implementation of the MCP server.
// The MCP protocol owns stdout, so logs go to stderr.
func doMcpServer(configPath, transport string, port int, logLevel string, stderr io.Writer) int {
	log := setupLogger(logLevel, stderr)

	cfg, err := loadAndValidateConfig(configPath, logLevel, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	if transport == "" {
		transport = cfg.MCP.Transport
	}
	if port <= 0 {
		port = cfg.MCP.Port
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error starting components: %v\n", err)
		return 1
	}
	defer a.shutdown(cfg.Server.ShutdownTimeout)

	server, err := mcp.NewServer(&mcp.ServerConfig{
		Directory: a.directory,
		Crawl:     a.coordinator,
		Transport: transport,
		Port:      port,
		Logger:    log,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}

	log.Infof("Starting MCP server (transport: %s)", transport)
	if err := server.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", err)
		return 1
	}
	return 0
}
