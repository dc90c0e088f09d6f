package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pastewatch/pastewatch/internal/config"
	"github.com/pastewatch/pastewatch/internal/proxypool"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestFetcher builds an HTTPFetcher with its retry sleep stubbed out, so
// tests exercise the real try-count/classification logic without paying for
// the real 60-second waits.
func newTestFetcher(t *testing.T) *HTTPFetcher {
	t.Helper()
	f, err := New(config.DefaultConfig(), nil, nil, nil, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return f
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	defer f.Close()

	result, err := f.Fetch(context.Background(), "testsite", srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(result.Body) != "hello" {
		t.Fatalf("unexpected body: %q", result.Body)
	}
	if result.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", result.StatusCode)
	}
}

func TestFetchDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://example.com/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	defer f.Close()

	result, err := f.Fetch(context.Background(), "testsite", srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.StatusCode != http.StatusFound {
		t.Fatalf("expected the 302 to be returned as-is, got %d", result.StatusCode)
	}
}

func TestFetchGivesUpOn404AfterExactlyFiveRetries(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	defer f.Close()

	_, err := f.Fetch(context.Background(), "testsite", srv.URL)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if hits.Load() != maxClientRetries+1 {
		t.Fatalf("expected %d attempts (1 + %d retries), got %d", maxClientRetries+1, maxClientRetries, hits.Load())
	}
}

func TestFetchOtherClientErrorsDoNotRetry(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	defer f.Close()

	_, err := f.Fetch(context.Background(), "testsite", srv.URL)
	if err == nil {
		t.Fatal("expected error for 400")
	}
	if hits.Load() != 1 {
		t.Fatalf("expected exactly one attempt for a non-404/5xx 4xx, got %d", hits.Load())
	}
}

func TestFetchRetriesServerErrorThenSucceeds(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	defer f.Close()

	result, err := f.Fetch(context.Background(), "testsite", srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(result.Body) != "ok" {
		t.Fatalf("unexpected body: %q", result.Body)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected exactly one retry, got %d hits", hits.Load())
	}
}

func TestFetchExhaustsServerBudgetAfter100Retries(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	defer f.Close()

	_, err := f.Fetch(context.Background(), "testsite", srv.URL)
	if err == nil {
		t.Fatal("expected error after exhausting server retry budget")
	}
	if hits.Load() != maxServerRetries+1 {
		t.Fatalf("expected %d attempts, got %d", maxServerRetries+1, hits.Load())
	}
}

func TestFetchRetriesSlowDown403ThenSucceeds(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 4 {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("Please slow down"))
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	defer f.Close()

	result, err := f.Fetch(context.Background(), "testsite", srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(result.Body) != "ok" {
		t.Fatalf("unexpected body: %q", result.Body)
	}
	if hits.Load() != 5 {
		t.Fatalf("expected four slow-down responses then a success (5 attempts), got %d", hits.Load())
	}
}

func TestFetchSlowDownMarkerMatchesGzipEncodedBody(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			var buf bytes.Buffer
			gw := gzip.NewWriter(&buf)
			gw.Write([]byte("Please slow down"))
			gw.Close()
			w.Header().Set("Content-Encoding", "gzip")
			w.WriteHeader(http.StatusForbidden)
			w.Write(buf.Bytes())
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	defer f.Close()

	result, err := f.Fetch(context.Background(), "testsite", srv.URL)
	if err != nil {
		t.Fatalf("expected a compressed slow-down 403 to be retried, got: %v", err)
	}
	if string(result.Body) != "ok" {
		t.Fatalf("unexpected body: %q", result.Body)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected one slow-down response then a success, got %d hits", hits.Load())
	}
}

func TestFetchForbiddenWithoutSlowDownMarkerDoesNotRetry(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("access denied"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	defer f.Close()

	_, err := f.Fetch(context.Background(), "testsite", srv.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	if hits.Load() != 1 {
		t.Fatalf("expected a plain 403 to be treated as an ordinary 4xx with no retry, got %d hits", hits.Load())
	}
}

func TestFetchNotReadyPlaceholderRetriesThenReturnsBodyAsIs(t *testing.T) {
	var hits atomic.Int64
	placeholder := "File is not ready for scraping yet. Try again in 1 minute."
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(placeholder))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	defer f.Close()

	result, err := f.Fetch(context.Background(), "testsite", srv.URL)
	if err != nil {
		t.Fatalf("expected the placeholder body on give-up, not an error: %v", err)
	}
	if string(result.Body) != placeholder {
		t.Fatalf("expected the placeholder body returned as-is, got %q", result.Body)
	}
	if hits.Load() != maxPasteRetries+1 {
		t.Fatalf("expected %d attempts (1 + %d retries), got %d", maxPasteRetries+1, maxPasteRetries, hits.Load())
	}
}

func TestFetchDoesNotPanicWithoutProxyPool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f, err := New(config.DefaultConfig(), nil, nil, nil, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer f.Close()

	if _, err := f.Fetch(context.Background(), "testsite", srv.URL); err != nil {
		t.Fatalf("Fetch with a nil proxy pool must not panic or error: %v", err)
	}
}

func TestFetchEvictsSoleProxyAfterTwoConnectionFailures(t *testing.T) {
	// A single-entry proxy pool pointed at a closed port: every attempt
	// fails at the transport level, driving the 0-wait connection-error
	// branch and the proxy pool's failure-threshold eviction. Once evicted,
	// Next() has nothing left to return.
	dir := t.TempDir()
	path := filepath.Join(dir, "proxies.txt")
	if err := os.WriteFile(path, []byte("http://127.0.0.1:1\n"), 0o644); err != nil {
		t.Fatalf("write proxy file: %v", err)
	}
	proxies, err := proxypool.NewPool(path, false, discardLogger())
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	f, err := New(config.DefaultConfig(), proxies, nil, nil, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	defer f.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	// The first two attempts fail through the dead proxy and evict it; once
	// evicted, Next() returns nil and the third attempt goes direct,
	// succeeding against the real test server.
	result, err := f.Fetch(context.Background(), "testsite", srv.URL)
	if err != nil {
		t.Fatalf("expected the fetch to eventually succeed direct once the proxy is evicted: %v", err)
	}
	if string(result.Body) != "ok" {
		t.Fatalf("unexpected body: %q", result.Body)
	}
	if proxies.LiveCount() != 0 {
		t.Fatalf("expected the sole proxy to be evicted after 2 failures, LiveCount=%d", proxies.LiveCount())
	}
}
