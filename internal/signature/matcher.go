// Package signature compiles the configured detection catalog once and
// evaluates it against pasty bodies.
package signature

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pastewatch/pastewatch/internal/config"
	"github.com/pastewatch/pastewatch/internal/types"
)

// Matcher evaluates a pre-compiled signature catalog against pasty bodies.
type Matcher struct {
	compiled []types.CompiledSignature
}

// Compile builds a Matcher from the configured signature catalog. Every
// pattern is compiled exactly once, here, never per pasty. search is
// compiled with regex-flags when set, otherwise case-insensitively.
func Compile(rules []config.SignatureConfig) (*Matcher, error) {
	compiled := make([]types.CompiledSignature, 0, len(rules))
	for _, rule := range rules {
		re, err := regexp.Compile(applyFlags(rule.Pattern, rule.RegexFlags))
		if err != nil {
			return nil, fmt.Errorf("signature %q: %w", ruleLabel(rule), err)
		}

		var exclude *regexp.Regexp
		if rule.Exclude != "" {
			exclude, err = regexp.Compile(applyFlags(rule.Exclude, rule.RegexFlags))
			if err != nil {
				return nil, fmt.Errorf("signature %q: exclude: %w", ruleLabel(rule), err)
			}
		}

		compiled = append(compiled, types.CompiledSignature{
			Signature: types.Signature{
				Name:        ruleLabel(rule),
				Description: rule.Description,
				Pattern:     rule.Pattern,
				MinCount:    rule.MinCount,
				Public:      rule.Public,
				To:          splitRecipients(rule.To),
			},
			Re:      re,
			Exclude: exclude,
		})
	}
	return &Matcher{compiled: compiled}, nil
}

// applyFlags prefixes pattern with an inline flag group. An explicit,
// non-empty flags string is used as-is (e.g. "i", "is"); otherwise the
// pattern is made case-insensitive.
func applyFlags(pattern, flags string) string {
	if flags == "" {
		flags = "i"
	}
	return fmt.Sprintf("(?%s)%s", flags, pattern)
}

func ruleLabel(rule config.SignatureConfig) string {
	if rule.Name != "" {
		return rule.Name
	}
	if rule.Description != "" {
		return rule.Description
	}
	return rule.Pattern
}

func splitRecipients(to string) []string {
	if to == "" {
		return nil
	}
	parts := strings.Split(to, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Evaluate runs every compiled signature against body and returns the ones
// that fired:
//  1. apply search, collect all non-overlapping matches
//  2. if count is set and fewer than count hits, skip
//  3. if exclude is set and matches anywhere in body, skip
//  4. otherwise the signature fired
func (m *Matcher) Evaluate(body []byte) []types.MatchResult {
	var hits []types.MatchResult
	for _, sig := range m.compiled {
		count := len(sig.Re.FindAll(body, -1))
		if count == 0 {
			continue
		}

		min := sig.MinCount
		if min <= 0 {
			min = 1
		}
		if count < min {
			continue
		}

		if sig.Exclude != nil && sig.Exclude.Match(body) {
			continue
		}

		hits = append(hits, types.MatchResult{
			Name:        sig.Name,
			Description: sig.Description,
			Count:       count,
			Public:      sig.Public,
			To:          sig.To,
		})
	}
	return hits
}

// Len returns the number of compiled signatures.
func (m *Matcher) Len() int {
	return len(m.compiled)
}
