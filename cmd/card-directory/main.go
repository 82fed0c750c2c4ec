package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/card-directory/pkg/category"
	"github.com/Sriram-PR/card-directory/pkg/config"
	"github.com/Sriram-PR/card-directory/pkg/storage"
)

const version = "1.0.0"

const defaultConfigPath = "config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "crawl":
		runCrawl(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "categories":
		os.Exit(doCategories(os.Stdout, os.Stderr))
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("card-directory %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `card-directory - Business card directory with a crawl-and-ingest pipeline

Usage:
  card-directory <command> [options]

Commands:
  serve       Run the HTTP API (search, admin, crawl control)
  crawl       Crawl a list of URLs once and exit
  migrate     Create the database tables
  validate    Validate configuration
  categories  Print the static category tree
  mcp-server  Start MCP server for AI tool integration
  version     Show version info

Configuration is read from a YAML file (-config, default config.yaml, optional)
and DB_*, SERVER_ADDR, PORT, LOG_LEVEL and STATE_DIR environment variables.
.env.local and .env are loaded when present.

Run 'card-directory <command> -h' for command-specific help.`)
}

// setupLogger creates a configured logrus.Logger writing to out.
// An empty level keeps the config or default level.
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)
	applyLogLevel(log, logLevelStr)
	return log
}

func applyLogLevel(log *logrus.Logger, logLevelStr string) {
	if logLevelStr == "" {
		return
	}
	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', keeping '%s'. Error: %v", logLevelStr, log.GetLevel(), err)
		return
	}
	log.SetLevel(level)
}

// resolveConfigPath returns "" (environment only) when the default config
// file is absent. An explicitly named file must exist.
func resolveConfigPath(path string) string {
	if path != defaultConfigPath {
		return path
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return ""
	}
	return path
}

// loadConfig loads the file and environment, then applies defaults.
// Returns the config and any validation warnings.
func loadConfig(path string) (*config.AppConfig, []string, error) {
	cfg, err := config.Load(resolveConfigPath(path))
	if err != nil {
		return nil, nil, err
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

// loadAndValidateConfig loads the config, logs warnings and applies the
// configured log level unless the -loglevel flag overrides it.
func loadAndValidateConfig(configFile, logLevelFlag string, log *logrus.Logger) (*config.AppConfig, error) {
	log.Infof("Loading configuration from %s", configFile)
	cfg, warnings, err := loadConfig(configFile)
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	if logLevelFlag == "" {
		applyLogLevel(log, cfg.LogLevel)
	}
	logAppConfig(cfg, log)
	return cfg, nil
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", defaultConfigPath, "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: card-directory validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	cfg, warnings, err := loadConfig(configPath)
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "OK: database %s@%s:%d/%s (sslmode=%s)\n",
		cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, cfg.Database.SSLMode)
	fmt.Fprintf(stdout, "OK: server %s, metrics %t\n", cfg.Server.Addr, cfg.Server.MetricsEnabled())
	fmt.Fprintf(stdout, "OK: crawl delay %v, fetch timeout %v, extractor %s, robots.txt %t\n",
		cfg.Crawl.Delay, cfg.Crawl.FetchTimeout, cfg.Crawl.Extractor, cfg.Crawl.RespectRobotsTxt)
	if cfg.LedgerEnabled() {
		fmt.Fprintf(stdout, "OK: outcome ledger in %s\n", cfg.StateDir)
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// runMigrate handles the migrate subcommand
func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configFile := fs.String("config", defaultConfigPath, "Path to config file")
	logLevel := fs.String("loglevel", "", "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	log := setupLogger(*logLevel, os.Stderr)
	cfg, err := loadAndValidateConfig(*configFile, *logLevel, log)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	ctx, stop := signalContext()
	defer stop()

	db, err := storage.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()

	if err := storage.Migrate(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Info("Database schema is up to date.")
}

// doCategories prints the static category tree
func doCategories(stdout, stderr io.Writer) int {
	tree, err := category.Tree()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := category.WriteTree(stdout, tree); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// logAppConfig logs the effective configuration
func logAppConfig(cfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Config Server: Addr:%s, Mode:%s, Metrics:%t, ReadTimeout:%v, WriteTimeout:%v",
		cfg.Server.Addr, cfg.Server.GinMode, cfg.Server.MetricsEnabled(), cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	log.Infof("Config Database: Host:%s, Port:%d, Name:%s, MaxOpen:%d, MaxIdle:%d, AutoMigrate:%t",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName,
		cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.AutoMigrate)
	log.Infof("Config Crawl: Delay:%v, FetchTimeout:%v, MaxBody:%d bytes, Extractor:%s, Robots:%t",
		cfg.Crawl.Delay, cfg.Crawl.FetchTimeout, cfg.Crawl.MaxBodyBytes, cfg.Crawl.Extractor, cfg.Crawl.RespectRobotsTxt)
	log.Infof("Config HTTP Client: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d, IdleTimeout:%v, TLSTimeout:%v, DialerTimeout:%v",
		cfg.HTTPClientSettings.Timeout, cfg.HTTPClientSettings.MaxIdleConns, cfg.HTTPClientSettings.MaxIdleConnsPerHost,
		cfg.HTTPClientSettings.IdleConnTimeout, cfg.HTTPClientSettings.TLSHandshakeTimeout, cfg.HTTPClientSettings.DialerTimeout)
	if cfg.LedgerEnabled() {
		log.Infof("Config Ledger: StateDir:%s, GCInterval:%v", cfg.StateDir, cfg.Crawl.LedgerGCInterval)
	}
}
