package parser

import (
	"fmt"
	"regexp"
)

// regexExtractor extracts pasty IDs using a regular expression with exactly
// one capture group (the ID itself).
type regexExtractor struct{}

func (regexExtractor) Extract(body []byte, pattern string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}

	matches := re.FindAllSubmatch(body, -1)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 1 {
			ids = append(ids, string(m[1]))
		} else {
			ids = append(ids, string(m[0]))
		}
	}
	return ids, nil
}
