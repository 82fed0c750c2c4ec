package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sriram-PR/card-directory/pkg/utils"
)

const (
	defaultCrawlDelay   = 2 * time.Second
	defaultFetchTimeout = 10 * time.Second
	defaultMaxBodyBytes = 5 << 20
	defaultUserAgent    = "card-directory-crawler/1.0"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	warnings = append(warnings, c.validateServer()...)

	dbWarnings, err := c.validateDatabase()
	warnings = append(warnings, dbWarnings...)
	if err != nil {
		return warnings, err
	}

	crawlWarnings, err := c.validateCrawl()
	warnings = append(warnings, crawlWarnings...)
	if err != nil {
		return warnings, err
	}

	c.validateHTTPClientSettings()

	if c.MCP.Transport == "" {
		c.MCP.Transport = MCPTransportStdio
	}
	if c.MCP.Transport != MCPTransportStdio && c.MCP.Transport != MCPTransportSSE {
		return warnings, fmt.Errorf("%w: mcp.transport must be 'stdio' or 'sse', got %q", utils.ErrConfigValidation, c.MCP.Transport)
	}
	if c.MCP.Port <= 0 {
		c.MCP.Port = 8081
	}

	return warnings, nil
}

// validateServer applies defaults to the HTTP API server settings.
func (c *AppConfig) validateServer() (warnings []string) {
	s := &c.Server
	if s.Addr == "" {
		warnings = append(warnings, "server.addr is empty, defaulting to ':3000'")
		s.Addr = ":3000"
	}
	if s.GinMode == "" {
		s.GinMode = "release"
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = 15 * time.Second
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = 30 * time.Second
	}
	if s.ShutdownTimeout <= 0 {
		s.ShutdownTimeout = 15 * time.Second
	}
	return warnings
}

// validateDatabase applies defaults to the database settings.
func (c *AppConfig) validateDatabase() (warnings []string, err error) {
	d := &c.Database
	if d.Host == "" {
		warnings = append(warnings, "database.host is empty, defaulting to 'localhost'")
		d.Host = "localhost"
	}
	if d.Port <= 0 {
		d.Port = 5432
	}
	if d.DBName == "" {
		return warnings, fmt.Errorf("%w: database.dbname is required", utils.ErrConfigValidation)
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.MaxOpenConns <= 0 {
		d.MaxOpenConns = 25
	}
	if d.MaxIdleConns <= 0 {
		d.MaxIdleConns = 5
	}
	if d.MaxIdleConns > d.MaxOpenConns {
		warnings = append(warnings, fmt.Sprintf(
			"database.max_idle_conns (%d) > max_open_conns (%d), capping idle connections",
			d.MaxIdleConns, d.MaxOpenConns))
		d.MaxIdleConns = d.MaxOpenConns
	}
	if d.ConnMaxLifetime <= 0 {
		d.ConnMaxLifetime = 5 * time.Minute
	}
	if d.PingTimeout <= 0 {
		d.PingTimeout = 5 * time.Second
	}
	return warnings, nil
}

// validateCrawl applies defaults to the crawl pipeline settings.
func (c *AppConfig) validateCrawl() (warnings []string, err error) {
	cr := &c.Crawl
	switch {
	case cr.Delay < 0:
		// Negative is kept: the coordinator reads it as "no pause"
		warnings = append(warnings, "crawl.delay is negative, disabling the pause between URLs")
	case cr.Delay == 0:
		cr.Delay = defaultCrawlDelay
	}

	if cr.FetchTimeout <= 0 {
		cr.FetchTimeout = defaultFetchTimeout
	}
	if cr.UserAgent == "" {
		cr.UserAgent = defaultUserAgent
	}
	if cr.MaxBodyBytes <= 0 {
		cr.MaxBodyBytes = defaultMaxBodyBytes
	}

	cr.Extractor = strings.ToLower(strings.TrimSpace(cr.Extractor))
	switch cr.Extractor {
	case "":
		cr.Extractor = ExtractorRegex
	case ExtractorRegex, ExtractorDOM:
	default:
		return warnings, fmt.Errorf("%w: crawl.extractor must be '%s' or '%s', got %q",
			utils.ErrConfigValidation, ExtractorRegex, ExtractorDOM, cr.Extractor)
	}

	if cr.LedgerGCInterval <= 0 {
		cr.LedgerGCInterval = 10 * time.Minute
	}
	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, crawl outcomes will only be logged")
	}
	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
