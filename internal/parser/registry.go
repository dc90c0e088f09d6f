// Package parser extracts pasty IDs from a site's index page body. A static
// registry replaces per-site dynamic dispatch: each site names a strategy by
// string, and the registry resolves it once at startup.
package parser

import "fmt"

// Extractor pulls a list of pasty IDs out of an index page body using the
// given pattern (a regexp, CSS selector, or XPath expression depending on the
// extractor).
type Extractor interface {
	Extract(body []byte, pattern string) ([]string, error)
}

var registry = map[string]Extractor{
	"regex": regexExtractor{},
	"css":   cssExtractor{},
	"xpath": xpathExtractor{},
	// "browser" only changes how the index page is obtained (see
	// internal/fetcher's browser-backed index fetch); extraction on the
	// rendered DOM still runs through the regex extractor.
	"browser": regexExtractor{},
}

// Resolve returns the extractor registered for strategy. An empty name
// selects the regex extractor; an unknown name is an error (config
// validation rejects unknown strategies before Resolve ever sees one).
func Resolve(strategy string) (Extractor, error) {
	if strategy == "" {
		strategy = "regex"
	}
	ex, ok := registry[strategy]
	if !ok {
		return nil, fmt.Errorf("no parser strategy registered for %q", strategy)
	}
	return ex, nil
}
