package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

const robotsMaxBytes = 512 << 10

// RobotsGuard fetches, caches and evaluates robots.txt per host.
// Any failure to obtain rules is cached as "allow everything".
type RobotsGuard struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	cache     map[string]*robotstxt.RobotsData // host -> parsed data (or nil)
	mu        sync.Mutex
	log       *logrus.Entry
}

// NewRobotsGuard creates a RobotsGuard sharing the fetcher's HTTP client
func NewRobotsGuard(client *http.Client, userAgent string, timeout time.Duration, log *logrus.Entry) *RobotsGuard {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RobotsGuard{
		client:    client,
		userAgent: userAgent,
		timeout:   timeout,
		cache:     make(map[string]*robotstxt.RobotsData),
		log:       log.WithField("component", "robots"),
	}
}

// Allowed reports whether the configured user agent may fetch target
func (g *RobotsGuard) Allowed(ctx context.Context, target *url.URL) bool {
	data := g.rulesFor(ctx, target)
	if data == nil {
		return true
	}
	return data.TestAgent(target.RequestURI(), g.userAgent)
}

// rulesFor returns cached robots data for target's host, fetching on miss
func (g *RobotsGuard) rulesFor(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	host := target.Host

	g.mu.Lock()
	data, found := g.cache[host]
	g.mu.Unlock()
	if found {
		return data
	}

	data = g.fetch(ctx, host)

	// A cancelled caller should not poison the cache
	if ctx.Err() != nil {
		return data
	}
	g.mu.Lock()
	g.cache[host] = data
	g.mu.Unlock()
	return data
}

func (g *RobotsGuard) fetch(ctx context.Context, host string) *robotstxt.RobotsData {
	robotsURL := (&url.URL{Scheme: "https", Host: host, Path: "/robots.txt"}).String()
	robotsLog := g.log.WithField("robots_url", robotsURL)

	fetchCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, robotsURL, nil)
	if err != nil {
		robotsLog.Errorf("Error creating request: %v", err)
		return nil
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		robotsLog.Warnf("Fetching robots.txt failed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBytes))
	if err != nil {
		robotsLog.Warnf("Error reading body: %v", err)
		return nil
	}

	// FromStatusAndBytes treats 4xx as allow-all and 5xx as disallow-all
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		robotsLog.Warnf("Error parsing content: %v", err)
		return nil
	}
	robotsLog.Debug("Fetched and parsed robots.txt")
	return data
}
