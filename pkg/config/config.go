package config

import (
	"fmt"
	"time"
)

// Extractor implementations selectable via crawl.extractor
const (
	ExtractorRegex = "regex"
	ExtractorDOM   = "dom"
)

// MCP transports selectable via mcp.transport
const (
	MCPTransportStdio = "stdio"
	MCPTransportSSE   = "sse"
)

// AppConfig holds the global application configuration
type AppConfig struct {
	LogLevel           string           `yaml:"log_level,omitempty"`
	StateDir           string           `yaml:"state_dir,omitempty"` // Badger outcome ledger location (empty = ledger disabled)
	Server             ServerConfig     `yaml:"server"`
	Database           DatabaseConfig   `yaml:"database"`
	Crawl              CrawlConfig      `yaml:"crawl"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
	MCP                MCPConfig        `yaml:"mcp,omitempty"`
}

// ServerConfig holds settings for the HTTP API server
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	GinMode         string        `yaml:"gin_mode,omitempty"` // debug, release, test
	ReadTimeout     time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"write_timeout,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
	EnableMetrics   *bool         `yaml:"enable_metrics,omitempty"` // nil = enabled
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode,omitempty"`
	MaxOpenConns    int           `yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime,omitempty"`
	PingTimeout     time.Duration `yaml:"ping_timeout,omitempty"`
	AutoMigrate     bool          `yaml:"auto_migrate,omitempty"` // Create tables on startup
}

// CrawlConfig holds settings for the crawl-and-ingest pipeline
type CrawlConfig struct {
	Delay            time.Duration `yaml:"delay,omitempty"`         // Pause between queue items
	FetchTimeout     time.Duration `yaml:"fetch_timeout,omitempty"` // Bound on a single page fetch
	UserAgent        string        `yaml:"user_agent,omitempty"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes,omitempty"`
	Extractor        string        `yaml:"extractor,omitempty"` // "regex" (default) or "dom"
	RespectRobotsTxt bool          `yaml:"respect_robots_txt,omitempty"`
	LedgerGCInterval time.Duration `yaml:"ledger_gc_interval,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// MCPConfig holds settings for the MCP tool server
type MCPConfig struct {
	Transport string `yaml:"transport,omitempty"` // "stdio" or "sse"
	Port      int    `yaml:"port,omitempty"`
}

// DSN returns the lib/pq connection string for the configured database.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// MetricsEnabled reports whether /metrics should be served
func (s ServerConfig) MetricsEnabled() bool {
	if s.EnableMetrics != nil {
		return *s.EnableMetrics
	}
	return true
}

// LedgerEnabled reports whether per-URL crawl outcomes are persisted
func (c *AppConfig) LedgerEnabled() bool {
	return c.StateDir != ""
}
