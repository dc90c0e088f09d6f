package types

import (
	"regexp"
	"strings"
)

// Signature is a single loaded-from-config detection rule: a regular
// expression evaluated against a pasty body, with an optional minimum hit
// count, an optional suppression pattern, and an optional public-disclosure
// flag and extra recipient list.
type Signature struct {
	Name        string
	Description string
	Pattern     string
	MinCount    int
	Public      bool
	To          []string
}

// CompiledSignature pairs a Signature with its compiled regexps. Compilation
// happens once, at config-load time, never per pasty. Exclude is nil when the
// signature has no exclude pattern configured.
type CompiledSignature struct {
	Signature
	Re      *regexp.Regexp
	Exclude *regexp.Regexp
}

// MatchResult records that a compiled signature fired against a pasty body,
// carrying along the bits the alerter and durable store need downstream.
type MatchResult struct {
	Name        string
	Description string
	Count       int
	Public      bool
	To          []string
}

// Describe returns the text used in alert subjects/bodies and the durable
// store's matches column for a set of matches: the description when set,
// otherwise the bare signature name, joined in the order the signatures
// fired and wrapped in brackets ("[aws-key, internal-host]").
func Describe(matches []MatchResult) string {
	if len(matches) == 0 {
		return ""
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Description != "" {
			out = append(out, m.Description)
		} else {
			out = append(out, m.Name)
		}
	}
	return "[" + strings.Join(out, ", ") + "]"
}

// AnyPublic reports whether any match in the set came from a signature
// declared public: true. A single public hit among several disagreeing
// signatures is enough; the weakest-privacy policy wins.
func AnyPublic(matches []MatchResult) bool {
	for _, m := range matches {
		if m.Public {
			return true
		}
	}
	return false
}
