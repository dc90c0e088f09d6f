package fetcher

import (
	"context"
	"net/http"
	"time"
)

// FetchResult holds a successfully retrieved body plus enough metadata for
// the caller to log or archive it.
type FetchResult struct {
	URL        string
	StatusCode int
	Body       []byte
	Header     http.Header
	Duration   time.Duration
}

// Fetcher retrieves the raw bytes at a URL on behalf of a named site.
// Implementations differ in how they obtain those bytes (plain HTTP,
// headless browser) but agree on this one verb so discovery and fetch
// workers can be wired to either. site threads through to the session
// manager so cookies from one site never leak into another.
type Fetcher interface {
	Fetch(ctx context.Context, site, url string) (*FetchResult, error)
	Close() error
}
