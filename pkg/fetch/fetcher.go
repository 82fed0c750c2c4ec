package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/card-directory/pkg/config"
	"github.com/Sriram-PR/card-directory/pkg/utils"
)

// Options controls a Fetcher's per-request behaviour
type Options struct {
	Timeout      time.Duration // Bound on the whole request, body included
	UserAgent    string
	MaxBodyBytes int64 // Larger bodies are truncated to this size
}

// OptionsFromConfig derives fetch options from the crawl section of the config
func OptionsFromConfig(cfg config.CrawlConfig) Options {
	return Options{
		Timeout:      cfg.FetchTimeout,
		UserAgent:    cfg.UserAgent,
		MaxBodyBytes: cfg.MaxBodyBytes,
	}
}

// Fetcher performs single bounded-time HTTPS retrievals
type Fetcher struct {
	client *http.Client
	opts   Options
	robots *RobotsGuard // nil = robots.txt not consulted
	log    *logrus.Entry
}

// NewFetcher creates a new Fetcher instance. robots may be nil.
func NewFetcher(client *http.Client, opts Options, robots *RobotsGuard, log *logrus.Entry) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Fetcher{
		client: client,
		opts:   opts,
		robots: robots,
		log:    log.WithField("component", "fetcher"),
	}
}

// Fetch retrieves the body of rawURL as text.
//
// Only https URLs are accepted; anything else fails with ErrUnsupportedScheme
// before any network activity. The robots.txt check and the request (headers
// and body) must complete within the configured timeout or ErrFetchTimeout is
// returned. Network
// failures are wrapped in ErrTransport and non-2xx statuses in the HTTP
// status sentinels.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	target, err := ParseHTTPS(rawURL)
	if err != nil {
		return "", err
	}
	reqLog := f.log.WithField("url", target.String())

	// The robots.txt lookup counts against the same deadline as the page
	fetchCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	if f.robots != nil && !f.robots.Allowed(fetchCtx, target) {
		reqLog.Info("Disallowed by robots.txt")
		return "", fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, target)
	}

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", f.classify(ctx, fetchCtx, err)
	}
	defer resp.Body.Close()

	resLog := reqLog.WithFields(logrus.Fields{"status_code": resp.StatusCode, "elapsed": time.Since(start)})
	if err := statusError(resp); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resLog.Warn("Non-success status")
		return "", err
	}

	body, truncated, err := readLimited(resp.Body, f.opts.MaxBodyBytes)
	if err != nil {
		if fetchCtx.Err() != nil {
			return "", f.classify(ctx, fetchCtx, err)
		}
		return "", fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if truncated {
		resLog.Warnf("Body exceeds %d bytes, truncated", f.opts.MaxBodyBytes)
	}
	resLog.Debugf("Fetched %d bytes", len(body))
	return body, nil
}

// classify maps a client or body-read error onto the fetch sentinels.
func (f *Fetcher) classify(parent, fetchCtx context.Context, err error) error {
	switch {
	case errors.Is(err, utils.ErrUnsupportedScheme):
		return err
	case parent.Err() != nil:
		// Caller gave up; surface the caller's own reason
		return fmt.Errorf("fetch aborted: %w", parent.Err())
	case errors.Is(fetchCtx.Err(), context.DeadlineExceeded), isTimeout(err):
		return fmt.Errorf("%w: no response within %s", utils.ErrFetchTimeout, f.opts.Timeout)
	default:
		return fmt.Errorf("%w: %w", utils.ErrTransport, err)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// statusError returns a wrapped sentinel for non-2xx responses
func statusError(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code >= 400 && code < 500:
		return fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, code, http.StatusText(code))
	case code >= 500:
		return fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, code, http.StatusText(code))
	default:
		return fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, code, http.StatusText(code))
	}
}

// readLimited reads at most limit bytes (limit <= 0 = unlimited) and reports
// whether more data was available.
func readLimited(r io.Reader, limit int64) (string, bool, error) {
	if limit <= 0 {
		data, err := io.ReadAll(r)
		return string(data), false, err
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", false, err
	}
	if int64(len(data)) > limit {
		return string(data[:limit]), true, nil
	}
	return string(data), false, nil
}

// ParseHTTPS parses rawURL and accepts it only when it is an absolute https
// URL with a host.
func ParseHTTPS(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", utils.ErrUnsupportedScheme, rawURL, err)
	}
	if u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", utils.ErrUnsupportedScheme, rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", utils.ErrUnsupportedScheme, rawURL)
	}
	u.Fragment = ""
	return u, nil
}
