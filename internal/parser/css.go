package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// cssExtractor extracts pasty IDs by applying a CSS selector, grabbing the
// href/text of each matched node and taking its last path segment as the ID.
type cssExtractor struct{}

func (cssExtractor) Extract(body []byte, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse index page: %w", err)
	}

	var ids []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		var raw string
		if href, ok := sel.Attr("href"); ok {
			raw = href
		} else {
			raw = sel.Text()
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		if id := lastSegment(raw); id != "" {
			ids = append(ids, id)
		}
	})
	return ids, nil
}

func lastSegment(path string) string {
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
