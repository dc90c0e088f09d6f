package parser

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// xpathExtractor extracts pasty IDs by evaluating an XPath expression against
// the parsed index page, using the same href-or-text / last-segment rule as
// the CSS extractor.
type xpathExtractor struct{}

func (xpathExtractor) Extract(body []byte, expr string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse index page: %w", err)
	}

	nodes, err := htmlquery.QueryAll(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}

	var ids []string
	for _, n := range nodes {
		raw := htmlquery.SelectAttr(n, "href")
		if raw == "" {
			raw = htmlquery.InnerText(n)
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if id := lastSegment(raw); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
