package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/pastewatch/pastewatch/internal/config"
	"github.com/pastewatch/pastewatch/internal/observability"
	"github.com/pastewatch/pastewatch/internal/proxypool"
	"github.com/pastewatch/pastewatch/internal/types"
)

// slowDownMarkers are the 403-body substrings treated as a rate-limit signal
// rather than a hard rejection.
var slowDownMarkers = []string{"please slow down", "temporarily blocked", "blocked"}

// pasteNotReadyMarker is the placeholder body some sites serve before a fresh
// paste is scrapable. It retries against its own budget, and on give-up the
// placeholder itself is returned as the body.
const pasteNotReadyMarker = "File is not ready for scraping yet. Try again in 1 minute."

// HTTPFetcher fetches index pages and pasty bodies over plain HTTP(S),
// rotating through a proxy pool and a User-Agent pool and retrying against
// a layered retryBudget instead of a single attempt ceiling.
type HTTPFetcher struct {
	client   *http.Client
	proxies  *proxypool.Pool
	agents   *proxypool.UserAgentPool
	sessions *SessionManager
	metrics  *observability.Metrics
	logger   *slog.Logger

	// sleep is the retry-delay primitive; overridden in tests to skip the
	// real 60-second waits while still exercising every branch of the
	// retry policy.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds an HTTPFetcher. proxies/agents may be pools with zero entries
// (direct connection, fixed User-Agent); sessions may be nil if per-site
// cookie continuity is not required.
func New(cfg *config.Config, proxies *proxypool.Pool, agents *proxypool.UserAgentPool, sessions *SessionManager, logger *slog.Logger) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if cfg.Network.IP != "" {
		addr, err := net.ResolveTCPAddr("tcp", cfg.Network.IP+":0")
		if err != nil {
			return nil, fmt.Errorf("resolve network.ip %q: %w", cfg.Network.IP, err)
		}
		dialer.LocalAddr = addr
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS10, MaxVersion: tls.VersionTLS13},
		DisableCompression:  true, // decompression is handled explicitly below, including brotli
	}

	client := &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout: 10 * time.Second,
		// Redirects are not followed; 301/302/303/307 are returned to the
		// caller as-is.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &HTTPFetcher{
		client:   client,
		proxies:  proxies,
		agents:   agents,
		sessions: sessions,
		logger:   logger.With("component", "http_fetcher"),
		sleep:    ctxSleep,
	}, nil
}

// SetMetrics wires the operational counters. A nil value disables recording.
func (f *HTTPFetcher) SetMetrics(m *observability.Metrics) {
	f.metrics = m
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// outcome classifies the result of one HTTP attempt and carries the data the
// retry loop in Fetch needs: which budget to spend, how long to wait before
// retrying, and (for the paste-not-ready give-up case) the placeholder body
// to hand back as a successful result instead of an error.
type outcome struct {
	class       failureClass
	wait        time.Duration
	placeholder []byte
	statusCode  int
}

type failureClass int

const (
	classifyFatal failureClass = iota // no retry: return the error immediately
	classifyClient                    // 404
	classifyServer                    // 5xx, slow-down 403, transport/timeout errors
	classifyPaste                     // "not ready for scraping" placeholder body
)

// Fetch retrieves url on behalf of site, retrying against a layered budget:
// 5xx/slow-down-403/transport errors spend the server budget (100 tries),
// 404 spends the client budget (5 tries), and the paste-not-ready
// placeholder spends its own budget (3 tries, returning the placeholder body
// as-is on give-up rather than an error). Any other 4xx returns immediately
// with no retry.
func (f *HTTPFetcher) Fetch(ctx context.Context, site, rawURL string) (*FetchResult, error) {
	var budget retryBudget
	var lastErr error
	f.metrics.RecordFetch()

	for {
		result, out, err := f.attempt(ctx, site, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		switch out.class {
		case classifyFatal:
			return nil, lastErr
		case classifyClient:
			if !budget.spendClient() {
				return nil, lastErr
			}
			f.metrics.RecordRetry("client")
		case classifyServer:
			if !budget.spendServer() {
				return nil, lastErr
			}
			f.metrics.RecordRetry("server")
		case classifyPaste:
			if !budget.spendPaste() {
				return &FetchResult{URL: rawURL, StatusCode: out.statusCode, Body: out.placeholder}, nil
			}
			f.metrics.RecordRetry("paste")
		}

		f.logger.Debug("retrying fetch", "url", rawURL, "wait", out.wait, "error", lastErr)
		if err := f.sleep(ctx, out.wait); err != nil {
			return nil, err
		}
	}
}

// attempt makes one HTTP round trip and classifies the outcome. It selects
// one proxy for the whole attempt so success/failure can be attributed back
// to that specific proxy rather than whatever Next() happens to return
// afterward.
func (f *HTTPFetcher) attempt(ctx context.Context, site, rawURL string) (*FetchResult, outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, outcome{class: classifyFatal}, &types.FetchError{URL: rawURL, Err: err}
	}

	req.Header.Set("User-Agent", f.userAgent())
	req.Header.Set("Accept-Charset", "utf-8")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	jar := f.client.Jar
	if f.sessions != nil {
		jar = f.sessions.Jar(site)
	}

	client := &http.Client{
		Transport:     f.client.Transport,
		Jar:           jar,
		Timeout:       f.client.Timeout,
		CheckRedirect: f.client.CheckRedirect,
	}
	var proxyURL *url.URL
	if f.proxies != nil {
		proxyURL = f.proxies.Next()
		if proxyURL != nil {
			transport := f.client.Transport.(*http.Transport).Clone()
			transport.Proxy = http.ProxyURL(proxyURL)
			client.Transport = transport
		}
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)

	if err != nil {
		return nil, f.classifyTransportError(proxyURL, err), &types.FetchError{URL: rawURL, Err: err, Retryable: true}
	}
	defer resp.Body.Close()
	if f.proxies != nil {
		f.proxies.MarkSucceeded(proxyURL)
	}

	// 301/302/303/307 are returned as-is, never chased.
	if isRedirect(resp.StatusCode) {
		return &FetchResult{URL: rawURL, StatusCode: resp.StatusCode, Header: resp.Header, Duration: duration}, outcome{}, nil
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if readErr != nil {
		return nil, outcome{class: classifyServer, wait: serverRetryWait}, &types.FetchError{URL: rawURL, Err: readErr, Retryable: true}
	}

	// Decode before classifying: the slow-down and not-ready markers live in
	// the body, and the transport requests gzip/deflate/br encodings.
	decoded, err := decompressBody(resp, body)
	if err != nil {
		return nil, outcome{class: classifyFatal}, &types.FetchError{URL: rawURL, Err: err}
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, outcome{class: classifyClient, wait: clientRetryWait}, &types.FetchError{
			URL: rawURL, StatusCode: resp.StatusCode, Retryable: true,
			Err: fmt.Errorf("HTTP 404"),
		}
	}

	if resp.StatusCode == http.StatusForbidden && containsAny(decoded, slowDownMarkers) {
		return nil, outcome{class: classifyServer, wait: serverRetryWait}, &types.FetchError{
			URL: rawURL, StatusCode: resp.StatusCode, Retryable: true,
			Err: fmt.Errorf("HTTP 403: rate limited"),
		}
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		// Other 4xx: give up immediately, no retry.
		return nil, outcome{class: classifyFatal}, &types.FetchError{
			URL: rawURL, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	if resp.StatusCode >= 500 {
		return nil, outcome{class: classifyServer, wait: serverRetryWait}, &types.FetchError{
			URL: rawURL, StatusCode: resp.StatusCode, Retryable: true,
			Err: fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	if bytesContainsFold(decoded, pasteNotReadyMarker) {
		return nil, outcome{class: classifyPaste, wait: pasteRetryWait, placeholder: decoded, statusCode: resp.StatusCode},
			&types.FetchError{URL: rawURL, Err: fmt.Errorf("paste not ready for scraping yet")}
	}

	f.logger.Debug("fetch complete", "url", rawURL, "status", resp.StatusCode, "size", len(decoded), "duration", duration)

	return &FetchResult{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Body:       decoded,
		Header:     resp.Header,
		Duration:   duration,
	}, outcome{}, nil
}

// classifyTransportError classifies a failed round trip. Any TCP/SSL/
// connection-level error through a proxy, timeouts included, marks that
// proxy failed and retries immediately so the next attempt rotates to a
// different one; a persistently broken proxy is the likely cause. Without a
// proxy in play, a timeout waits 60s before retrying and any other
// connection error retries immediately.
func (f *HTTPFetcher) classifyTransportError(proxyURL *url.URL, err error) outcome {
	if !isRetryableError(err) {
		return outcome{class: classifyFatal}
	}
	if proxyURL != nil {
		f.proxies.MarkFailed(proxyURL)
		return outcome{class: classifyServer, wait: transportRetryWait}
	}
	if isTimeoutError(err) {
		return outcome{class: classifyServer, wait: serverRetryWait}
	}
	return outcome{class: classifyServer, wait: transportRetryWait}
}

func (f *HTTPFetcher) userAgent() string {
	if f.agents == nil {
		return "PasteWatch/1.0"
	}
	return f.agents.Next()
}

// Close releases idle connections.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther, http.StatusTemporaryRedirect:
		return true
	default:
		return false
	}
}

func containsAny(body []byte, markers []string) bool {
	lower := strings.ToLower(string(body))
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func bytesContainsFold(body []byte, marker string) bool {
	return strings.Contains(strings.ToLower(string(body)), strings.ToLower(marker))
}

// decompressBody decodes body according to Content-Encoding.
func decompressBody(resp *http.Response, body []byte) ([]byte, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gr, err := gzip.NewReader(strings.NewReader(string(body)))
		if err != nil {
			return nil, err
		}
		return io.ReadAll(gr)
	case "deflate":
		return io.ReadAll(flate.NewReader(strings.NewReader(string(body))))
	case "br":
		return io.ReadAll(brotli.NewReader(strings.NewReader(string(body))))
	default:
		return body, nil
	}
}

// isTimeoutError reports whether err represents a timeout: a net.Error with
// Timeout() true, or any error whose message mentions "timed out".
func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timed out")
}

// isRetryableError reports whether a transport-level error warrants a retry
// rather than an immediate give-up. Context cancellation is never retryable.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNRESET) || errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
	}
	return false
}
