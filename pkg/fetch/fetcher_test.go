package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/card-directory/pkg/config"
	"github.com/Sriram-PR/card-directory/pkg/utils"
)

// testLogger returns a logger that discards output
func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// tlsServer starts an httptest TLS server and returns it with a client that
// trusts its certificate and applies the https-only redirect policy.
func tlsServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *http.Client) {
	t.Helper()
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)
	client := server.Client()
	client.CheckRedirect = httpsOnlyRedirects(testLogger())
	return server, client
}

func testOptions() Options {
	return Options{Timeout: 2 * time.Second, UserAgent: "card-test/1.0", MaxBodyBytes: 1 << 20}
}

func TestFetch_Success(t *testing.T) {
	var gotUA atomic.Value
	server, client := tlsServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.UserAgent())
		_, _ = io.WriteString(w, "<html><title>Acme</title></html>")
	})

	f := NewFetcher(client, testOptions(), nil, testLogger())
	body, err := f.Fetch(context.Background(), server.URL+"/about")

	require.NoError(t, err)
	assert.Equal(t, "<html><title>Acme</title></html>", body)
	assert.Equal(t, "card-test/1.0", gotUA.Load())
}

func TestFetch_RejectsNonHTTPSWithoutNetwork(t *testing.T) {
	var hits atomic.Int32
	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(plain.Close)

	f := NewFetcher(plain.Client(), testOptions(), nil, testLogger())

	for _, raw := range []string{
		plain.URL,
		"ftp://example.com/file",
		"example.com",
		"https://",
		"://broken",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrUnsupportedScheme)
		})
	}
	assert.Equal(t, int32(0), hits.Load(), "no request may reach the network")
}

func TestFetch_Timeout(t *testing.T) {
	server, client := tlsServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})

	opts := testOptions()
	opts.Timeout = 50 * time.Millisecond
	f := NewFetcher(client, opts, nil, testLogger())

	start := time.Now()
	_, err := f.Fetch(context.Background(), server.URL)

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrFetchTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "Network_Timeout", utils.CategorizeError(err))
}

func TestFetch_ParentCancelIsNotTimeout(t *testing.T) {
	server, client := tlsServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	f := NewFetcher(client, testOptions(), nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := f.Fetch(ctx, server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, utils.ErrFetchTimeout))
}

func TestFetch_TransportError(t *testing.T) {
	server, client := tlsServer(t, func(w http.ResponseWriter, r *http.Request) {})
	url := server.URL
	server.Close()

	f := NewFetcher(client, testOptions(), nil, testLogger())
	_, err := f.Fetch(context.Background(), url)

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrTransport)
}

func TestFetch_StatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"404", http.StatusNotFound, utils.ErrClientHTTPError},
		{"429", http.StatusTooManyRequests, utils.ErrClientHTTPError},
		{"500", http.StatusInternalServerError, utils.ErrServerHTTPError},
		{"503", http.StatusServiceUnavailable, utils.ErrServerHTTPError},
		{"304", http.StatusNotModified, utils.ErrOtherHTTPError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, client := tlsServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			f := NewFetcher(client, testOptions(), nil, testLogger())

			_, err := f.Fetch(context.Background(), server.URL)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFetch_RedirectToHTTPRejected(t *testing.T) {
	server, client := tlsServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://example.com/", http.StatusFound)
	})

	f := NewFetcher(client, testOptions(), nil, testLogger())
	_, err := f.Fetch(context.Background(), server.URL)

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrUnsupportedScheme)
}

func TestFetch_BodyTruncated(t *testing.T) {
	server, client := tlsServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("a", 100))
	})

	opts := testOptions()
	opts.MaxBodyBytes = 10
	f := NewFetcher(client, opts, nil, testLogger())

	body, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 10), body)
}

func TestFetch_RobotsDisallowed(t *testing.T) {
	var pageHits atomic.Int32
	server, client := tlsServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = io.WriteString(w, "User-agent: *\nDisallow: /private\n")
			return
		}
		pageHits.Add(1)
		_, _ = io.WriteString(w, "ok")
	})

	guard := NewRobotsGuard(client, "card-test/1.0", time.Second, testLogger())
	f := NewFetcher(client, testOptions(), guard, testLogger())

	_, err := f.Fetch(context.Background(), server.URL+"/private/page")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRobotsDisallowed)

	body, err := f.Fetch(context.Background(), server.URL+"/public")
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
	assert.Equal(t, int32(1), pageHits.Load())
}

func TestFetch_SlowRobotsCountsAgainstTimeout(t *testing.T) {
	var pageHits atomic.Int32
	server, client := tlsServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
			return
		}
		pageHits.Add(1)
		_, _ = io.WriteString(w, "ok")
	})

	guard := NewRobotsGuard(client, "card-test/1.0", 5*time.Second, testLogger())
	opts := testOptions()
	opts.Timeout = 100 * time.Millisecond
	f := NewFetcher(client, opts, guard, testLogger())

	start := time.Now()
	_, err := f.Fetch(context.Background(), server.URL+"/page")

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrFetchTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(0), pageHits.Load())
}

func TestRobotsGuard_MissingFileAllowsAndCaches(t *testing.T) {
	var robotsHits atomic.Int32
	server, client := tlsServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits.Add(1)
			http.NotFound(w, r)
		}
	})

	guard := NewRobotsGuard(client, "card-test/1.0", time.Second, testLogger())
	target, err := ParseHTTPS(server.URL + "/anything")
	require.NoError(t, err)

	assert.True(t, guard.Allowed(context.Background(), target))
	assert.True(t, guard.Allowed(context.Background(), target))
	assert.Equal(t, int32(1), robotsHits.Load(), "robots.txt should be fetched once per host")
}

func TestParseHTTPS(t *testing.T) {
	u, err := ParseHTTPS("  HTTPS://Example.com/a#frag ")
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "", u.Fragment)
	assert.Equal(t, "/a", u.Path)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.CrawlConfig{
		FetchTimeout: 3 * time.Second,
		UserAgent:    "ua",
		MaxBodyBytes: 42,
	})
	assert.Equal(t, Options{Timeout: 3 * time.Second, UserAgent: "ua", MaxBodyBytes: 42}, opts)
}

func TestNewClient_RedirectPolicy(t *testing.T) {
	client := NewClient(config.HTTPClientConfig{Timeout: time.Second}, testLogger())
	require.NotNil(t, client.CheckRedirect)

	via := []*http.Request{httptest.NewRequest(http.MethodGet, "https://a.example/", nil)}
	httpsNext := httptest.NewRequest(http.MethodGet, "https://b.example/", nil)
	httpNext := httptest.NewRequest(http.MethodGet, "http://b.example/", nil)

	assert.NoError(t, client.CheckRedirect(httpsNext, via))
	assert.ErrorIs(t, client.CheckRedirect(httpNext, via), utils.ErrUnsupportedScheme)
}
