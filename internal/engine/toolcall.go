package engine

import (
	"regexp"
	"strings"
)

// The server has no formal tool-call event type; tool activity only shows
// up as phrases inside reasoning text. These matchers are ordered and
// deliberately loose: false positives and negatives are expected and
// acceptable, so this must stay a heuristic, not a parser.
var toolMatchers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)using tool:\s*([a-z0-9][a-z0-9 _-]*)`),
	regexp.MustCompile(`(?i)\b([a-z]+ chart)\b`),
	regexp.MustCompile(`(?i)analyzing\s+([a-z0-9][a-z0-9 _-]*)`),
}

// ExtractToolName pulls a probable tool name out of reasoning text
func ExtractToolName(text string) (string, bool) {
	for _, matcher := range toolMatchers {
		match := matcher.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		name := strings.TrimSpace(match[1])
		if name != "" {
			return strings.ToLower(name), true
		}
	}
	return "", false
}
