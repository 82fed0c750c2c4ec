package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Sriram-PR/card-directory/pkg/crawler"
)

// runCrawl handles the crawl subcommand
func runCrawl(args []string) {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	configFile := fs.String("config", defaultConfigPath, "Path to config file")
	logLevel := fs.String("loglevel", "", "Log level (debug, info, warn, error); overrides config")
	urlsFlag := fs.String("urls", "", "Comma-separated HTTPS URLs to crawl")
	urlFile := fs.String("file", "", "File with one URL per line ('#' starts a comment)")
	pprofAddr := fs.String("pprof", "", "pprof address, e.g. localhost:6060 (disabled by default)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: card-directory crawl [options]

Enqueue the given URLs, drain the queue once and print a summary.
Extracted cards are saved as pending and need admin review.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  card-directory crawl -urls https://a.example,https://b.example
  card-directory crawl -file urls.txt -loglevel debug
`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	urls, err := collectURLs(*urlsFlag, *urlFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no URLs given (use -urls or -file)")
		fs.Usage()
		os.Exit(1)
	}

	log := setupLogger(*logLevel, os.Stderr)
	cfg, err := loadAndValidateConfig(*configFile, *logLevel, log)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	startPprof(*pprofAddr, log)

	ctx, stop := signalContext()
	defer stop()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
	defer a.shutdown(cfg.Server.ShutdownTimeout)

	added := a.coordinator.Enqueue(urls)
	log.Infof("Enqueued %d of %d URLs", added, len(urls))

	runID, err := a.coordinator.Start(ctx)
	if err != nil {
		log.Errorf("Failed to start crawl: %v", err)
		return
	}
	log.WithField("run_id", runID).Info("Crawl started")
	a.coordinator.Wait()

	printCrawlSummary(os.Stdout, a.coordinator.Status())
}

// collectURLs merges the -urls list and the -file contents, keeping order.
// Duplicates are left to the coordinator.
func collectURLs(list, path string) ([]string, error) {
	var urls []string
	for _, u := range strings.Split(list, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if path == "" {
		return urls, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url file: %w", err)
	}
	defer f.Close()

	fromFile, err := readURLList(f)
	if err != nil {
		return nil, fmt.Errorf("read url file %s: %w", path, err)
	}
	return append(urls, fromFile...), nil
}

// readURLList reads one URL per line, skipping blanks and '#' comments
func readURLList(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

func printCrawlSummary(w io.Writer, st crawler.Status) {
	fmt.Fprintln(w, "\nCrawl summary")
	if st.RunID != "" {
		fmt.Fprintf(w, "  Run:        %s\n", st.RunID)
	}
	fmt.Fprintf(w, "  Processed:  %d\n", st.Processed)
	fmt.Fprintf(w, "  Saved:      %d (pending review)\n", st.Saved)
	fmt.Fprintf(w, "  Duplicates: %d\n", st.Duplicates)
	fmt.Fprintf(w, "  Failures:   %d\n", st.Failures)
	if st.QueueDepth > 0 {
		fmt.Fprintf(w, "  Unprocessed (interrupted): %d\n", st.QueueDepth)
	}
}
