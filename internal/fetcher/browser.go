package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// BrowserFetcher renders a site's index page in a headless Chromium instance
// before handing the resulting HTML to the regular ID-extraction path. Sites
// whose recent-pastes list is populated by client-side JavaScript need this
// instead of a plain HTTP GET; pasty bodies themselves are always fetched
// with HTTPFetcher, since they are static text regardless of how the index
// page behaves.
type BrowserFetcher struct {
	browser *rod.Browser
	logger  *slog.Logger
}

// NewBrowserFetcher launches a headless, stealth-patched Chromium instance.
func NewBrowserFetcher(logger *slog.Logger) (*BrowserFetcher, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	return &BrowserFetcher{
		browser: browser,
		logger:  logger.With("component", "browser_fetcher"),
	}, nil
}

// Fetch navigates to url and returns the page's rendered HTML once network
// activity settles. site is accepted to satisfy the Fetcher interface but
// browser sessions are not currently kept per site.
func (bf *BrowserFetcher) Fetch(ctx context.Context, site, url string) (*FetchResult, error) {
	start := time.Now()

	page, err := stealth.Page(bf.browser)
	if err != nil {
		return nil, fmt.Errorf("open stealth page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx)

	if err := page.Timeout(30 * time.Second).Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.Timeout(30 * time.Second).WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Warn("page stability timeout, continuing", "site", site, "url", url, "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read rendered html: %w", err)
	}

	info, err := page.Info()
	finalURL := url
	if err == nil && info != nil {
		finalURL = info.URL
	}

	duration := time.Since(start)
	bf.logger.Debug("browser fetch complete", "site", site, "url", url, "final_url", finalURL, "size", len(html), "duration", duration)

	return &FetchResult{
		URL:        finalURL,
		StatusCode: 200,
		Body:       []byte(html),
		Duration:   duration,
	}, nil
}

// Close shuts down the browser.
func (bf *BrowserFetcher) Close() error {
	return bf.browser.Close()
}
