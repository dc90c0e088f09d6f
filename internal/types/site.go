package types

import (
	"fmt"
	"time"
)

// Site is the runtime view of one monitored paste-hosting site, derived from
// its config.SiteConfig entry.
type Site struct {
	// Name identifies the site in logs, the archive path, and the durable store.
	Name string

	// Enabled controls whether discovery/fetch workers run for this site at all.
	Enabled bool

	// IndexURL is the page listing recently submitted pasty IDs.
	IndexURL string

	// IndexPattern is the regular expression (or selector, depending on
	// ParserStrategy) used to pull IDs out of the index page body.
	IndexPattern string

	// DownloadURLTemplate is the pasty body URL with a single "%s" placeholder
	// for the extracted ID.
	DownloadURLTemplate string

	// ParserStrategy selects the index-page ID extractor: "regex" (default),
	// "css", "xpath", or "browser".
	ParserStrategy string

	// UpdateMin and UpdateMax bound the random jitter between discovery polls.
	UpdateMin time.Duration
	UpdateMax time.Duration
}

// DownloadURL formats the pasty download URL for a given ID.
func (s *Site) DownloadURL(id string) string {
	return fmt.Sprintf(s.DownloadURLTemplate, id)
}
