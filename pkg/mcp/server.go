// Package mcp exposes directory search and crawl control as MCP tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/card-directory/pkg/config"
	"github.com/Sriram-PR/card-directory/pkg/crawler"
	"github.com/Sriram-PR/card-directory/pkg/directory"
	"github.com/Sriram-PR/card-directory/pkg/models"
)

const (
	serverName    = "card-directory"
	serverVersion = "1.0.0"
)

// CrawlController is the crawl surface the tools drive
type CrawlController interface {
	Enqueue(urls []string) int
	Start(ctx context.Context) (string, error)
	Stop() bool
	Status() crawler.Status
	ClearQueue() int
	RecentOutcomes(limit int) ([]models.CrawlOutcome, error)
	LatestOutcome(url string) (*models.CrawlOutcome, bool, error)
}

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	Directory *directory.Service
	Crawl     CrawlController
	Transport string // "stdio" or "sse"
	Port      int
	Logger    *logrus.Logger
}

// Server wraps the MCP server with directory tools
type Server struct {
	mcpServer *server.MCPServer
	cfg       *ServerConfig
	log       *logrus.Entry
	runCtx    context.Context // Set by Run; bounds crawl runs started by tools
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.Directory == nil || cfg.Crawl == nil {
		return nil, errors.New("directory service and crawl controller are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer: mcpServer,
		cfg:       cfg,
		log:       cfg.Logger.WithField("component", "mcp"),
		runCtx:    context.Background(),
	}
	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	tools := []struct {
		tool    mcp.Tool
		handler server.ToolHandlerFunc
	}{
		{mcp.NewTool("search_cards",
			mcp.WithDescription("Search directory cards by keyword across name, description, website, address, category and keywords"),
			mcp.WithString("query", mcp.Description("Keyword (case-insensitive substring match); empty lists every card")),
			mcp.WithNumber("max_results", mcp.Description("Maximum number of results (default: 20, max: 100)")),
		), s.handleSearchCards},
		{mcp.NewTool("get_card",
			mcp.WithDescription("Get one directory card by id"),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Card id")),
		), s.handleGetCard},
		{mcp.NewTool("enqueue_urls",
			mcp.WithDescription("Add HTTPS URLs to the crawl queue. URLs already queued or already crawled are skipped."),
			mcp.WithArray("urls", mcp.Required(), mcp.WithStringItems(), mcp.Description("URLs to crawl")),
		), s.handleEnqueueURLs},
		{mcp.NewTool("start_crawl",
			mcp.WithDescription("Start draining the crawl queue in the background. Returns immediately with a run id."),
		), s.handleStartCrawl},
		{mcp.NewTool("stop_crawl",
			mcp.WithDescription("Stop the running crawl after the URL in progress"),
		), s.handleStopCrawl},
		{mcp.NewTool("crawl_status",
			mcp.WithDescription("Get crawl state, queue depth and counters for the current run"),
		), s.handleCrawlStatus},
		{mcp.NewTool("clear_queue",
			mcp.WithDescription("Remove every pending URL from the crawl queue"),
		), s.handleClearQueue},
		{mcp.NewTool("list_categories",
			mcp.WithDescription("List the static category tree, optionally with the categories currently used by cards"),
			mcp.WithBoolean("include_stored", mcp.Description("Also return distinct categories stored on cards")),
			mcp.WithString("code", mcp.Description("Return only the node with this code or name, with its path")),
		), s.handleListCategories},
		{mcp.NewTool("crawl_outcomes",
			mcp.WithDescription("List recent per-URL crawl results, newest first"),
			mcp.WithNumber("limit", mcp.Description("Maximum number of outcomes (default: 20, max: 500)")),
			mcp.WithString("url", mcp.Description("Return only the latest outcome for this URL")),
		), s.handleCrawlOutcomes},
	}

	for _, t := range tools {
		s.mcpServer.AddTool(t.tool, t.handler)
	}
	s.log.Infof("Registered %d MCP tools", len(tools))
}

// Run serves the configured transport until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	return s.serve(ctx, os.Stdin, os.Stdout)
}

func (s *Server) serve(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	s.runCtx = ctx
	switch s.cfg.Transport {
	case config.MCPTransportStdio:
		s.log.Info("Starting MCP server with stdio transport")
		return server.NewStdioServer(s.mcpServer).Listen(ctx, stdin, stdout)
	case config.MCPTransportSSE:
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)

		errCh := make(chan error, 1)
		go func() { errCh <- sseServer.Start(addr) }()
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			s.log.Info("Shutting down MCP server...")
			return sseServer.Shutdown(context.WithoutCancel(ctx))
		}
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}
